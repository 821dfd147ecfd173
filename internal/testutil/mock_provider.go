// Package testutil provides test helpers shared by the search client packages.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock provider endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock search provider for adapter tests.
type MockProvider struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	lastHeader   http.Header
	lastQuery    url.Values
}

// NewMockProvider starts a mock provider server. Unconfigured paths answer 404.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastHeader = r.Header.Clone()
		mock.lastQuery = r.URL.Query()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Endpoint returns the absolute URL of path on the mock server.
func (m *MockProvider) Endpoint(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastHeader = nil
	m.lastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockProvider) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received.
func (m *MockProvider) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastHeader returns the headers of the most recent request.
func (m *MockProvider) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the query string of the most recent request.
func (m *MockProvider) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewHTMLResponse creates a 200 OK HTML response.
func NewHTMLResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewErrorResponse creates a JSON error response with the given status.
func NewErrorResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"error": "` + http.StatusText(status) + `"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	resp := NewErrorResponse(http.StatusTooManyRequests)
	resp.Headers["Retry-After"] = "30"
	return resp
}
