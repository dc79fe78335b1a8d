package apiclient

import (
	"errors"
	"fmt"
)

// ClassifiedError is the only error shape callers of Client receive for
// backend failures.
type ClassifiedError struct {
	Kind       Kind
	Message    string
	StatusCode int
	ShowToUser bool

	// Code is the backend's machine-readable code for API_ERROR, if any.
	Code string

	cause error
	meta  requestMeta
}

// requestMeta is filled in by Client for the log line; classification never reads it.
type requestMeta struct {
	method    string
	url       string
	requestID string
	attempts  int
}

func (m requestMeta) attrs() []any {
	if m.url == "" {
		return nil
	}
	return []any{
		"method", m.method,
		"url", m.url,
		"request_id", m.requestID,
		"attempts", m.attempts,
	}
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("apiclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("apiclient: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the Failure (or service-level cause) behind the classification.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// AsClassified extracts a ClassifiedError from err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the classified kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	if ce, ok := AsClassified(err); ok {
		return ce.Kind
	}
	return ""
}
