package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

// Failure is what the transport boundary produces for an unsuccessful
// attempt. It is a closed set: TransportFailure, HTTPFailure, ApplicationFailure.
type Failure interface {
	error
	failure()
}

type TransportCode int

const (
	// TransportNetwork covers refused connections, DNS failures and an offline device.
	TransportNetwork TransportCode = iota
	// TransportTimeout is a per-attempt deadline overrun.
	TransportTimeout
	// TransportAborted is a caller cancellation.
	TransportAborted
)

func (c TransportCode) String() string {
	switch c {
	case TransportTimeout:
		return "timeout"
	case TransportAborted:
		return "aborted"
	default:
		return "network"
	}
}

// TransportFailure means no HTTP response was received.
type TransportFailure struct {
	Code TransportCode
	URL  string
	Err  error
}

func (f TransportFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s failure calling %s", f.Code, f.URL)
	}
	return fmt.Sprintf("%s failure calling %s: %v", f.Code, f.URL, f.Err)
}

func (f TransportFailure) Unwrap() error { return f.Err }
func (TransportFailure) failure()        {}

// HTTPFailure is a non-2xx response.
type HTTPFailure struct {
	StatusCode int
	URL        string
	// Message is the backend's "message"/"error" text, or the status text.
	Message string
	Body    []byte
}

func (f HTTPFailure) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", f.StatusCode, f.URL, f.Message)
}

func (HTTPFailure) failure() {}

// ApplicationFailure is a non-2xx response outside the status table whose body
// carries an explicit "error" field. Message is that field, verbatim.
type ApplicationFailure struct {
	StatusCode int
	URL        string
	Message    string
	// Code is the optional machine-readable "code" field.
	Code string
}

func (f ApplicationFailure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("application error %q (HTTP %d) from %s: %s", f.Code, f.StatusCode, f.URL, f.Message)
	}
	return fmt.Sprintf("application error (HTTP %d) from %s: %s", f.StatusCode, f.URL, f.Message)
}

func (ApplicationFailure) failure() {}

// ErrOffline is the cause recorded when the connectivity probe fails the pre-check.
var ErrOffline = errors.New("network error: device is offline")

var genericNetworkMessage = regexp.MustCompile(`(?i)network (error|request failed)`)

type errorBody struct {
	Error   *string `json:"error"`
	Message *string `json:"message"`
	Code    string  `json:"code"`
}

// transportFailure maps a round-trip error.
func transportFailure(url string, err error) TransportFailure {
	code := TransportNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = TransportTimeout
	case errors.Is(err, context.Canceled):
		code = TransportAborted
	case errors.As(err, &netErr) && netErr.Timeout():
		code = TransportTimeout
	}
	return TransportFailure{Code: code, URL: url, Err: err}
}

// responseFailure maps a non-2xx response.
func responseFailure(url string, status int, body []byte) Failure {
	var parsed errorBody
	_ = json.Unmarshal(bytes.TrimSpace(body), &parsed)

	if !mappedStatus(status) && parsed.Error != nil && *parsed.Error != "" {
		return ApplicationFailure{StatusCode: status, URL: url, Message: *parsed.Error, Code: parsed.Code}
	}

	message := http.StatusText(status)
	switch {
	case parsed.Message != nil && *parsed.Message != "":
		message = *parsed.Message
	case parsed.Error != nil && *parsed.Error != "":
		message = *parsed.Error
	}
	return HTTPFailure{StatusCode: status, URL: url, Message: message, Body: body}
}

// rawMessage is the literal text extracted from a failure, before translation.
func rawMessage(f Failure) string {
	switch v := f.(type) {
	case TransportFailure:
		if v.Err != nil {
			return v.Err.Error()
		}
		return ""
	case HTTPFailure:
		return v.Message
	case ApplicationFailure:
		return v.Message
	default:
		return ""
	}
}

func statusOf(f Failure) int {
	switch v := f.(type) {
	case HTTPFailure:
		return v.StatusCode
	case ApplicationFailure:
		return v.StatusCode
	default:
		return 0
	}
}

func isUnauthorized(f Failure) bool {
	return statusOf(f) == http.StatusUnauthorized
}
