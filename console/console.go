// Package console wires the HR console core together: the API client, the session store, the
// auth service, the refresh coordinator and the attendance reconciler.
package console

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-hr-console/apiclient"
	"github.com/jrsteele09/go-hr-console/apiclient/refresh"
	"github.com/jrsteele09/go-hr-console/attendance"
	"github.com/jrsteele09/go-hr-console/auth"
	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/jrsteele09/go-hr-console/notify"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/jrsteele09/go-hr-console/sessions/filerepo"
	"github.com/jrsteele09/go-hr-console/sessions/redisrepo"
	"github.com/jrsteele09/go-hr-console/sessions/repofakes"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const msgSessionExpired = "Your session has expired. Please sign in again."

type Console struct {
	cfg        config.Config
	client     *apiclient.Client
	store      *sessions.Store
	auth       *auth.Service
	api        *refresh.Coordinator
	attendance *attendance.Reconciler
	repo       sessions.Repo

	navigator  Navigator
	notifier   notify.Notifier
	httpClient *http.Client
	clock      *attendance.Clock
	logger     zerolog.Logger
	nowTime    func() time.Time

	adopting    atomic.Bool // set while applying a session another process persisted

	unsubscribe []func()
	closers     []func() error
	closeOnce   sync.Once
}

type Option func(*Console)

func WithNavigator(n Navigator) Option {
	return func(c *Console) {
		c.navigator = n
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Console) {
		c.notifier = n
	}
}

// WithSessionRepo overrides the session backend selected by the configuration.
func WithSessionRepo(repo sessions.Repo) Option {
	return func(c *Console) {
		c.repo = repo
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Console) {
		c.httpClient = hc
	}
}

// WithClock replaces the attendance clock, e.g. with one driven by a manual ticker.
func WithClock(clock *attendance.Clock) Option {
	return func(c *Console) {
		c.clock = clock
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Console) {
		c.nowTime = nowFunc
	}
}

// New builds the console. Every authenticated call made through it shares one refresh
// coordinator, so concurrent 401s cause a single refresh.
func New(cfg config.Config, options ...Option) (*Console, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[console.New] config is required")
	}
	c := &Console{
		cfg:     cfg,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.navigator == nil {
		c.navigator = NewMemoryNavigator("/")
	}
	if c.notifier == nil {
		c.notifier = notify.NewLogNotifier(c.logger)
	}

	clientOpts := []apiclient.ClientOption{apiclient.WithLogger(c.logger)}
	if c.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(c.httpClient))
	}
	client, err := apiclient.New(cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("[console.New] %w", err)
	}
	c.client = client

	if c.repo == nil {
		repo, closer, err := openSessionRepo(cfg)
		if err != nil {
			return nil, fmt.Errorf("[console.New] session repo: %w", err)
		}
		c.repo = repo
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	c.store = sessions.NewStore(sessions.WithLogger(c.logger))

	c.auth, err = auth.NewService(client, c.store,
		auth.WithCookieJar(client),
		auth.WithNowTime(c.nowTime),
		auth.WithLogger(c.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("[console.New] %w", err)
	}

	c.api = refresh.New(client, c.store, c.auth,
		refresh.WithOnExhausted(c.sessionExhausted),
		refresh.WithLogger(c.logger),
	)

	if c.clock == nil {
		c.clock = attendance.NewClock(
			attendance.WithInterval(cfg.GetTickInterval()),
			attendance.WithClockNowFunc(c.nowTime),
		)
	}
	c.attendance, err = attendance.NewReconciler(c.api, c.store,
		attendance.WithClock(c.clock),
		attendance.WithNotifier(c.notifier),
		attendance.WithNowFunc(c.nowTime),
		attendance.WithLogger(c.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("[console.New] %w", err)
	}

	c.unsubscribe = append(c.unsubscribe,
		c.store.Subscribe(c.persist),
		c.store.Subscribe(c.resetAttendance),
	)
	return c, nil
}

func openSessionRepo(cfg config.SessionConfig) (sessions.Repo, func() error, error) {
	switch cfg.GetSessionBackend() {
	case config.SessionBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		repo, err := redisrepo.Dial(ctx, cfg.GetRedisAddr(), cfg.GetSessionKey(), cfg.GetSessionTTL())
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.SessionBackendMemory:
		return repofakes.NewFakeSessionRepo(), nil, nil
	default:
		repo, err := filerepo.New(cfg.GetSessionFile())
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	}
}

// persist keeps the session repo in line with the store. A pending verification has no token
// yet, so nothing is written for it.
func (c *Console) persist(s sessions.Session) {
	if c.adopting.Load() {
		return
	}
	ctx := context.Background()
	switch s.State() {
	case sessions.StateAuthenticated:
		p := &sessions.Persisted{
			User:        s.User,
			AccessToken: s.AccessToken,
			Cookies:     sessions.CookiesFromHTTP(c.client.Cookies()),
			SavedAt:     c.nowTime(),
		}
		if err := c.repo.Save(ctx, p); err != nil {
			c.logger.Err(err).Msg("failed to persist session")
		}
	case sessions.StateAnonymous:
		if err := c.repo.Delete(ctx); err != nil {
			c.logger.Err(err).Msg("failed to delete persisted session")
		}
	}
}

func (c *Console) resetAttendance(s sessions.Session) {
	if !s.IsAuthenticated() {
		c.attendance.Reset()
	}
}

// sessionExhausted runs once per failed refresh. The store has already been cleared by the
// auth service.
func (c *Console) sessionExhausted(err error) {
	c.notifier.Error(context.Background(), msgSessionExpired, err)
	c.toLogin()
}

func (c *Console) toLogin() {
	login := c.cfg.GetLoginPath()
	if c.navigator.Location() == login {
		return
	}
	c.navigator.Navigate(login)
}

func (c *Console) Login(ctx context.Context, email, password string) (sessions.Session, error) {
	return c.auth.Login(ctx, auth.Credentials{Email: email, Password: password})
}

// VerifyOTP completes a login that is waiting for its one-time code.
func (c *Console) VerifyOTP(ctx context.Context, code string) (sessions.Session, error) {
	return c.auth.VerifyOTP(ctx, "", code)
}

func (c *Console) Logout(ctx context.Context) {
	c.auth.Logout(ctx)
	c.toLogin()
}

// Restore revalidates the persisted session, if there is one.
func (c *Console) Restore(ctx context.Context) (bool, error) {
	return c.auth.Restore(ctx, c.repo)
}

// Get sends an authenticated GET and decodes the JSON reply into out, if out is not nil.
func (c *Console) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// Post sends an authenticated POST with body encoded as JSON.
func (c *Console) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

func (c *Console) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := apiclient.Do(ctx, c.api, method, path, body, apiclient.Options{})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Console) Attendance() *attendance.Reconciler {
	return c.attendance
}

// Session returns a copy of the current session.
func (c *Console) Session() sessions.Session {
	return c.store.Snapshot()
}

func (c *Console) Store() *sessions.Store {
	return c.store
}

func (c *Console) Navigator() Navigator {
	return c.navigator
}

func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, unsubscribe := range c.unsubscribe {
			unsubscribe()
		}
		c.attendance.Close()
		for _, closer := range c.closers {
			if cerr := closer(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
