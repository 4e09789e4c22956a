package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is an HTTP error response from a delivery API, classified for
// retry decisions.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Permanent  bool
	Transient  bool
	RetryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Service, e.StatusCode, e.Message)
}

// ClassifyHTTP categorizes an HTTP error status for retry decisions.
// A zero status marks a transport failure, which is transient.
func ClassifyHTTP(service string, statusCode int, message, retryAfter string) *APIError {
	err := &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
		RetryAfter: retryAfter,
	}

	switch {
	case statusCode == 0:
		err.Transient = true
	case statusCode == http.StatusBadRequest || statusCode == http.StatusForbidden:
		err.Permanent = true
	case statusCode == http.StatusUnauthorized:
		err.Transient = true
	case statusCode == http.StatusTooManyRequests:
		err.Transient = true
	case statusCode >= 500:
		err.Transient = true
	default:
		err.Permanent = true
	}

	return err
}

// RetryAfterDelay parses a Retry-After header value in seconds. It falls
// back to exponential backoff when the value is missing or unparseable.
func RetryAfterDelay(retryAfter string, base time.Duration, attempt int) time.Duration {
	if retryAfter == "" {
		return Backoff(base, attempt)
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return Backoff(base, attempt)
}
