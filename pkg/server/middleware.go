package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var serverRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_server_requests_total",
	Help: "Total proxy HTTP requests by route and status",
}, []string{"route", "status"})

const (
	headerRequestID = "X-Request-ID"
	keyRequestID    = "request_id"
)

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestIDFrom returns the request id assigned to c.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(keyRequestID)
}

// accessLog logs each request and counts it.
func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		serverRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

		event := logger.Debug()
		if status >= 500 {
			event = logger.Warn()
		}
		event.
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
