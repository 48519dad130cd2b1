// Package apiclient sends requests to the HR backend and classifies every failure as a typed *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderRequestID correlates client and server logs.
	HeaderRequestID = "X-Request-ID"

	maxBodySize = 4 << 20
)

// Client is the base sender. It never attaches tokens; that is the refresh coordinator's job.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	jar     *resettableJar
	timeout time.Duration
	logger  zerolog.Logger
}

var _ Sender = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient sends through a copy of hc. The copy always uses the client's own cookie jar.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.http = &cp
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout overrides the configured request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(cfg config.APIConfig, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[apiclient.New] config is required")
	}
	base, err := url.Parse(cfg.GetAPIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[apiclient.New] invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("[apiclient.New] base url %q must be absolute", cfg.GetAPIBaseURL())
	}

	jar, err := newResettableJar()
	if err != nil {
		return nil, fmt.Errorf("[apiclient.New] cookie jar: %w", err)
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{},
		jar:     jar,
		timeout: cfg.GetRequestTimeout(),
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.http.Jar = c.jar
	return c, nil
}

// BaseURL returns the backend root the client resolves paths against.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("[Client.Send] request is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		apiErr := classifyTransportError(ctx, req.Method, req.Path, err)
		c.logger.Debug().Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Str("kind", apiErr.Kind.String()).
			Msg("request failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(ctx, req.Method, req.Path, err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Str("request_id", httpReq.Header.Get(HeaderRequestID)).
		Dur("took", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(req.Method, req.Path, resp.StatusCode, body)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("[Client.Send] invalid path %q: %w", req.Path, err)
	}

	var body io.Reader
	if req.Body != nil {
		switch b := req.Body.(type) {
		case []byte:
			body = bytes.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("[Client.Send] encode body: %w", err)
			}
			body = bytes.NewReader(data)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[Client.Send] new request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.New().String())
	}
	return httpReq, nil
}

// resolve appends path to the base URL, keeping any prefix the base URL carries (e.g. /api).
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	return &u, nil
}

// Cookies returns the cookies currently held for the backend, e.g. the refresh cookie.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// SetCookies imports previously exported cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	scoped := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		cp := *ck
		if cp.Path == "" {
			cp.Path = "/"
		}
		scoped = append(scoped, &cp)
	}
	c.jar.SetCookies(c.baseURL, scoped)
}

// ResetCookies forgets every cookie, including the refresh cookie.
func (c *Client) ResetCookies() {
	c.jar.Reset()
}
