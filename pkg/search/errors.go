package search

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass classifies search errors.
type ErrorClass string

const (
	// ClassParam marks a malformed or missing query field, detected before I/O.
	ClassParam ErrorClass = "param"

	// ClassAuth marks missing or invalid backend credentials.
	ClassAuth ErrorClass = "auth"

	// ClassConnection marks an unreachable backend or a non-success response.
	ClassConnection ErrorClass = "connection"

	// ClassRateLimit marks a backend refusing requests because of its rate limit.
	ClassRateLimit ErrorClass = "rate_limit"

	// ClassCacheConnection marks an unreachable cache store.
	ClassCacheConnection ErrorClass = "cache_connection"

	// ClassLoad marks an unknown backend name.
	ClassLoad ErrorClass = "load"
)

// Sentinels for errors.Is matching against *Error.
var (
	ErrParam           = errors.New("invalid query parameter")
	ErrAuth            = errors.New("missing or invalid credentials")
	ErrConnection      = errors.New("backend connection failed")
	ErrRateLimit       = errors.New("backend rate limit exceeded")
	ErrCacheConnection = errors.New("cache store unreachable")
	ErrLoad            = errors.New("engine not found")
)

var classSentinels = map[ErrorClass]error{
	ClassParam:           ErrParam,
	ClassAuth:            ErrAuth,
	ClassConnection:      ErrConnection,
	ClassRateLimit:       ErrRateLimit,
	ClassCacheConnection: ErrCacheConnection,
	ClassLoad:            ErrLoad,
}

var statusMessages = map[int]string{
	http.StatusBadRequest:   "Bad request sent to search API (%d)",
	http.StatusUnauthorized: "Incorrect API Key (%d)",
	http.StatusForbidden:    "Correct API but request refused (%d)",
	http.StatusNotFound:     "Bad request sent to search API (%d)",
}

// Error is the error type returned by every component of the search client.
type Error struct {
	Class      ErrorClass
	Source     string // component or engine raising the error
	Message    string
	StatusCode int // backend status code, connection errors only
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s - %s", e.Source, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's class. Rate limit errors
// also match ErrConnection.
func (e *Error) Is(target error) bool {
	if sentinel, ok := classSentinels[e.Class]; ok && sentinel == target {
		return true
	}
	return e.Class == ClassRateLimit && target == ErrConnection
}

// NewParamError returns a ClassParam error.
func NewParamError(source, format string, args ...any) *Error {
	return &Error{Class: ClassParam, Source: source, Message: fmt.Sprintf(format, args...)}
}

// NewAuthError returns a ClassAuth error.
func NewAuthError(source, format string, args ...any) *Error {
	return &Error{Class: ClassAuth, Source: source, Message: fmt.Sprintf(format, args...)}
}

// NewLoadError returns a ClassLoad error.
func NewLoadError(source, format string, args ...any) *Error {
	return &Error{Class: ClassLoad, Source: source, Message: fmt.Sprintf(format, args...)}
}

// NewCacheConnectionError wraps a store failure detected at construction.
func NewCacheConnectionError(source string, err error) *Error {
	return &Error{
		Class:   ClassCacheConnection,
		Source:  source,
		Message: "failed to establish connection to cache store",
		Err:     err,
	}
}

// NewConnectionError builds a connection error. A non-zero status code
// replaces the message with the standard text for that status, and 429
// is reported as ClassRateLimit.
func NewConnectionError(source string, statusCode int, message string, err error) *Error {
	e := &Error{
		Class:      ClassConnection,
		Source:     source,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
	if statusCode == 0 {
		return e
	}
	if statusCode == http.StatusTooManyRequests {
		e.Class = ClassRateLimit
		e.Message = fmt.Sprintf("Request rate limit exceeded (%d)", statusCode)
		return e
	}
	format, ok := statusMessages[statusCode]
	if !ok {
		format = "Unknown engine error (%d)"
	}
	e.Message = fmt.Sprintf(format, statusCode)
	return e
}

// ClassOf returns the class of err, or "" if err is not an *Error.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}
