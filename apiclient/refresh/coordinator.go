// Package refresh wraps an apiclient.Sender with bearer authentication and transparent
// recovery from access token expiry.
//
// When a request fails with 401 the coordinator joins the single in-flight refresh (starting
// one if none is running), then replays the request exactly once with the new token.
// Requests failing while a refresh is in flight queue behind it; they never start their own.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-hr-console/apiclient"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() *oauth2.Token
}

// Refresher obtains a new token, normally the silent refresh of the session.
// It is responsible for updating (or clearing) the session it refreshes.
type Refresher interface {
	SilentRefresh(ctx context.Context) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) SilentRefresh(ctx context.Context) error { return f(ctx) }

// ExhaustedError is returned to every request whose recovery depended on a failed refresh.
type ExhaustedError struct {
	Original *apiclient.Error // the 401 the request received
	Cause    error            // why the refresh failed
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: %v", hrerrors.ErrRefreshExhausted, e.Cause)
}

func (e *ExhaustedError) Unwrap() []error {
	errs := []error{hrerrors.ErrRefreshExhausted}
	if e.Original != nil {
		errs = append(errs, e.Original)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	next      apiclient.Sender
	tokens    TokenSource
	refresher Refresher

	onExhausted func(error)
	logger      zerolog.Logger

	group      singleflight.Group
	refreshing atomic.Bool

	mu      sync.Mutex
	epoch   uint64 // completed refreshes
	lastErr error  // outcome of the most recent refresh
}

var _ apiclient.Sender = (*Coordinator)(nil)

type Option func(*Coordinator)

// WithOnExhausted is called once per failed refresh, after the refresher has cleared the session.
func WithOnExhausted(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onExhausted = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func New(next apiclient.Sender, tokens TokenSource, refresher Refresher, options ...Option) *Coordinator {
	c := &Coordinator{
		next:      next,
		tokens:    tokens,
		refresher: refresher,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	return c.refreshing.Load()
}

func (c *Coordinator) Send(ctx context.Context, req *apiclient.Request) (*apiclient.Response, error) {
	if req == nil {
		return nil, errors.New("[Coordinator.Send] request is required")
	}

	sent := req.Clone()
	epoch := c.currentEpoch()
	c.authorize(sent)

	resp, err := c.next.Send(ctx, sent)
	if err == nil || !c.recoverable(sent, err) {
		return resp, err
	}
	original, _ := apiclient.AsError(err)

	refreshErr, waitErr := c.awaitRefresh(ctx, epoch)
	if waitErr != nil {
		return nil, waitErr
	}
	if refreshErr != nil {
		return nil, &ExhaustedError{Original: original, Cause: refreshErr}
	}

	replay := req.Clone()
	replay.Options.Retry = true
	c.authorize(replay)
	return c.next.Send(ctx, replay)
}

func (c *Coordinator) recoverable(req *apiclient.Request, err error) bool {
	if req.Options.SkipAuth || req.Options.IsLogoutRequest || req.Options.Retry {
		return false
	}
	return apiclient.IsUnauthorized(err)
}

func (c *Coordinator) authorize(req *apiclient.Request) {
	req.Header.Del("Authorization")
	if req.Options.SkipAuth || c.tokens == nil {
		return
	}
	tok := c.tokens.Token()
	if tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(&http.Request{Header: req.Header})
}

func (c *Coordinator) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// awaitRefresh returns the outcome of the refresh the request depends on. A request sent
// before the latest refresh completed reuses that outcome instead of starting another refresh.
// waitErr is set when ctx ends before the shared refresh does.
func (c *Coordinator) awaitRefresh(ctx context.Context, sentEpoch uint64) (refreshErr, waitErr error) {
	c.mu.Lock()
	if c.epoch != sentEpoch {
		err := c.lastErr
		c.mu.Unlock()
		return err, nil
	}
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return nil, c.runRefresh(ctx)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runRefresh executes exactly one refresh. The flag is reset on every path, including a panic.
func (c *Coordinator) runRefresh(ctx context.Context) (err error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
		c.mu.Lock()
		c.epoch++
		c.lastErr = err
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn().Err(err).Msg("session refresh failed")
			if c.onExhausted != nil {
				c.onExhausted(err)
			}
			return
		}
		c.logger.Debug().Msg("session refreshed")
	}()

	if c.refresher == nil {
		return errors.New("no refresher configured")
	}
	// one caller giving up must not fail the refresh every other caller is waiting on
	return c.refresher.SilentRefresh(context.WithoutCancel(ctx))
}
