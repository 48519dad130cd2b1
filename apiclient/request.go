package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Options are the per-request flags understood by the client and the refresh coordinator.
type Options struct {
	// SkipAuth sends the request without a bearer token and never triggers a refresh.
	SkipAuth bool
	// IsLogoutRequest disables every kind of error recovery.
	IsLogoutRequest bool
	// Retry marks a replayed request. Set by the refresh coordinator only.
	Retry bool
}

type Request struct {
	Method  string
	Path    string
	Body    any
	Header  http.Header
	Options Options
}

// Clone returns a copy whose header can be modified independently.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	return &c
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals a JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Sender sends a request to the backend. The base Client and the refresh coordinator both implement it.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Do is shorthand for building a Request and sending it.
func Do(ctx context.Context, s Sender, method, path string, body any, opts Options) (*Response, error) {
	return s.Send(ctx, &Request{Method: method, Path: path, Body: body, Options: opts})
}
