package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/go-hr-console/apiclient"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/notify"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	CheckInPath  = "/timetrackers/check-in"
	CheckOutPath = "/timetrackers/check-out"
	DailyLogPath = "/timetrackers/daily-log/"

	msgAutoClosed = "Your previous session was closed automatically."
)

// Identity supplies the signed-in user; *sessions.Store implements it.
type Identity interface {
	CurrentUser() *sessions.User
}

// Reconciler treats the backend as the source of truth for attendance. Every status fetch
// replaces the local view wholesale and the clock is restarted or stopped to match.
type Reconciler struct {
	api      apiclient.Sender
	identity Identity
	clock    *Clock
	notifier notify.Notifier
	nowFunc  func() time.Time
	logger   zerolog.Logger

	ops sync.Mutex // one backend operation at a time so results apply in order

	mu     sync.RWMutex
	status Status
}

type Option func(*Reconciler)

func WithNotifier(n notify.Notifier) Option {
	return func(r *Reconciler) {
		r.notifier = n
	}
}

// WithClock replaces the default one second clock.
func WithClock(c *Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithNowFunc is used for the check-out time when the backend does not echo one.
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(r *Reconciler) {
		r.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func NewReconciler(api apiclient.Sender, identity Identity, options ...Option) (*Reconciler, error) {
	if api == nil {
		return nil, errors.New("[NewReconciler] api sender is required")
	}
	if identity == nil {
		return nil, errors.New("[NewReconciler] identity is required")
	}
	r := &Reconciler{
		api:      api,
		identity: identity,
		nowFunc:  time.Now,
		logger:   log.Logger,
		status:   Status{State: StateUnknown},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.clock == nil {
		r.clock = NewClock(WithClockNowFunc(r.nowFunc))
	}
	if r.notifier == nil {
		r.notifier = notify.NewLogNotifier(r.logger)
	}
	return r, nil
}

// Current returns a copy of the local view.
func (r *Reconciler) Current() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{State: r.status.State, Session: r.status.Session.clone()}
}

func (r *Reconciler) Elapsed() time.Duration {
	return r.clock.Elapsed()
}

// OnTick forwards every clock tick, e.g. to redraw a status line.
func (r *Reconciler) OnTick(fn func(time.Duration)) {
	r.clock.OnTick(fn)
}

// FetchCurrentStatus loads today's record for the signed-in user and replaces the local view.
// On failure the view becomes Unknown and the clock stops.
func (r *Reconciler) FetchCurrentStatus(ctx context.Context) (Session, error) {
	r.ops.Lock()
	defer r.ops.Unlock()
	return r.fetch(ctx)
}

func (r *Reconciler) fetch(ctx context.Context) (Session, error) {
	user := r.identity.CurrentUser()
	if user == nil || user.ID == "" {
		r.apply(Status{State: StateUnknown})
		return Session{}, fmt.Errorf("[Reconciler.FetchCurrentStatus] %w", hrerrors.ErrNotAuthenticated)
	}

	resp, err := apiclient.Do(ctx, r.api, http.MethodGet, DailyLogPath+url.PathEscape(user.ID), nil, apiclient.Options{})
	if err != nil {
		r.apply(Status{State: StateUnknown})
		return Session{}, fmt.Errorf("[Reconciler.FetchCurrentStatus] %w", err)
	}
	var body logResponse
	if err := resp.Decode(&body); err != nil {
		r.apply(Status{State: StateUnknown})
		return Session{}, fmt.Errorf("[Reconciler.FetchCurrentStatus] %w", err)
	}

	s := body.session()
	r.apply(Status{State: stateOf(s), Session: s})
	return s.clone(), nil
}

// CheckIn asks the backend to check the user in, then always refetches the status: the backend
// may have closed a stale earlier session as a side effect, which the check-in reply alone does
// not show. A refused check-in leaves the local view untouched.
func (r *Reconciler) CheckIn(ctx context.Context) (Session, error) {
	r.ops.Lock()
	defer r.ops.Unlock()

	resp, err := apiclient.Do(ctx, r.api, http.MethodPost, CheckInPath, nil, apiclient.Options{})
	if err != nil {
		r.notifier.Error(ctx, apiclient.Message(err, "Check-in failed."), err)
		return r.Current().Session, fmt.Errorf("[Reconciler.CheckIn] %w", err)
	}

	var body logResponse
	if err := resp.Decode(&body); err != nil {
		r.logger.Warn().Err(err).Msg("unreadable check-in response")
	}
	if body.AutoClosed {
		r.notifier.Info(ctx, msgAutoClosed)
	}

	s, err := r.fetch(ctx)
	if err != nil {
		r.notifier.Error(ctx, "Checked in, but the current status could not be loaded.", err)
		return s, fmt.Errorf("[Reconciler.CheckIn] refresh status: %w", err)
	}
	if body.AutoClosed {
		s.AutoClosed = true
		r.mu.Lock()
		r.status.Session.AutoClosed = true
		r.mu.Unlock()
	}
	r.logger.Info().Bool("auto_closed", body.AutoClosed).Msg("checked in")
	return s, nil
}

// CheckOut ends the active session. The reply is authoritative, so the clock stops without a
// refetch. A refused check-out leaves the local view untouched.
func (r *Reconciler) CheckOut(ctx context.Context) (Session, error) {
	r.ops.Lock()
	defer r.ops.Unlock()

	resp, err := apiclient.Do(ctx, r.api, http.MethodPost, CheckOutPath, nil, apiclient.Options{})
	if err != nil {
		r.notifier.Error(ctx, apiclient.Message(err, "Check-out failed."), err)
		return r.Current().Session, fmt.Errorf("[Reconciler.CheckOut] %w", err)
	}

	var body logResponse
	if err := resp.Decode(&body); err != nil {
		r.logger.Warn().Err(err).Msg("unreadable check-out response")
	}

	s := body.session()
	if s.CheckInTime == nil {
		s = r.Current().Session
	}
	if s.CheckOutTime == nil {
		now := r.nowFunc()
		s.CheckOutTime = &now
	}
	r.apply(Status{State: StateInactive, Session: s})
	r.logger.Info().Msg("checked out")
	return s.clone(), nil
}

// Reset forgets the local view and stops the clock, e.g. after logout.
func (r *Reconciler) Reset() {
	r.apply(Status{State: StateUnknown})
}

// Close stops the clock goroutine.
func (r *Reconciler) Close() {
	r.Reset()
}

// apply replaces the local view and brings the clock in line with it.
func (r *Reconciler) apply(next Status) {
	r.mu.Lock()
	r.status = Status{State: next.State, Session: next.Session.clone()}
	r.mu.Unlock()

	if next.State != StateActive {
		r.clock.Stop()
		return
	}
	start := *next.Session.CheckInTime
	if cur, running := r.clock.StartedAt(); running && cur.Equal(start) {
		return
	}
	r.clock.Start(start)
}
