package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed request.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindTimeout:
		return "Timeout"
	case KindHTTP:
		return "HttpError"
	}
	return "Unknown"
}

// Error is returned for every failed request. Status and Body are only set for KindHTTP.
type Error struct {
	Kind    Kind
	Method  string
	Path    string
	Status  int
	Body    []byte
	Message string // server supplied message, or a generic fallback
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Path, e.Kind, e.Status, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure was a connectivity problem rather than a server answer.
func (e *Error) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is an HTTP 401 from the backend.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindHTTP && apiErr.Status == http.StatusUnauthorized
}

// IsTransient reports whether err is a network failure or a timeout.
func IsTransient(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Transient()
}

// Message returns a user displayable message for err.
func Message(err error, fallback string) string {
	apiErr, ok := AsError(err)
	if !ok {
		return fallback
	}
	switch apiErr.Kind {
	case KindTimeout:
		return "The server took too long to respond. Please try again."
	case KindNetwork:
		return "Unable to reach the server. Check your connection."
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func newHTTPError(method, path string, status int, body []byte) *Error {
	return &Error{
		Kind:    KindHTTP,
		Method:  method,
		Path:    path,
		Status:  status,
		Body:    body,
		Message: serverMessage(status, body),
	}
}

func classifyTransportError(ctx context.Context, method, path string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Method: method, Path: path, Err: err}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func serverMessage(status int, body []byte) string {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if m := strings.TrimSpace(eb.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(eb.Error); m != "" {
			return m
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}
