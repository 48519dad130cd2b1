// Package auth performs the session operations against the backend: login, second-factor
// verification, silent refresh, logout and restoring a persisted session.
//
// The service talks to the base sender directly. Every call it makes is SkipAuth, so none of
// them can recurse into the refresh coordinator.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-hr-console/apiclient"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend paths used by the service.
const (
	LoginPath    = "/auth/login"
	VerifyPath   = "/auth/verify-otp"
	RefreshPath  = "/auth/refresh-token"
	LogoutPath   = "/auth/logout"
	logoutBudget = 5 * time.Second
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CookieJar is the part of the HTTP client that holds the refresh cookie.
type CookieJar interface {
	SetCookies(cookies []*http.Cookie)
	ResetCookies()
}

// authResponse covers the login, verify and refresh bodies; the token field name differs per endpoint.
type authResponse struct {
	User                *sessions.User `json:"user"`
	Token               string         `json:"token"`
	AccessToken         string         `json:"accessToken"`
	PendingVerification bool           `json:"pendingVerification"`
	Email               string         `json:"email"`
}

func (r authResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Service is safe for concurrent use; ordering of transitions is the Store's concern.
type Service struct {
	api     apiclient.Sender
	store   *sessions.Store
	cookies CookieJar
	nowTime func() time.Time
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

// WithCookieJar lets Logout drop the refresh cookie and Restore re-import it.
func WithCookieJar(jar CookieJar) ServiceOption {
	return func(s *Service) {
		s.cookies = jar
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService needs the base sender, not the refresh coordinator.
func NewService(api apiclient.Sender, store *sessions.Store, options ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api sender is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}

	s := &Service{
		api:     api,
		store:   store,
		nowTime: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login submits credentials. The result is either Authenticated or, when the account has a
// second factor, PendingVerification with no token yet.
// A login attempted while a verification is pending abandons that verification.
func (s *Service) Login(ctx context.Context, creds Credentials) (sessions.Session, error) {
	if s.store.State() == sessions.StateAuthenticated {
		return s.store.Snapshot(), errors.Wrap(hrerrors.ErrInvalidTransition, "[Login] already signed in")
	}

	resp, err := apiclient.Do(ctx, s.api, http.MethodPost, LoginPath, creds, apiclient.Options{SkipAuth: true})
	if err != nil {
		return s.rejected("Login", err, hrerrors.ErrInvalidCredentials, "Login failed")
	}

	var body authResponse
	if err := resp.Decode(&body); err != nil {
		return s.rejected("Login", errors.Wrap(err, "[Login] response"), hrerrors.ErrInternal, "Login failed")
	}

	if s.store.State() == sessions.StatePendingVerification {
		s.store.Clear()
	}

	if body.PendingVerification {
		email := body.Email
		if email == "" {
			email = creds.Email
		}
		if err := s.store.BeginVerification(email); err != nil {
			return s.store.Snapshot(), errors.Wrap(err, "[Login] begin verification")
		}
		s.logger.Info().Str("email", email).Msg("login awaiting verification")
		return s.store.Snapshot(), nil
	}

	if err := s.store.CompleteLogin(body.User, body.token()); err != nil {
		if errors.Is(err, hrerrors.ErrMissingUser) {
			return s.rejected("Login", err, hrerrors.ErrInternal, "Login failed")
		}
		return s.store.Snapshot(), errors.Wrap(err, "[Login] complete login")
	}
	s.logger.Info().Str("user_id", body.User.ID).Msg("logged in")
	return s.store.Snapshot(), nil
}

// VerifyOTP completes a pending login. An empty email uses the one the login reported.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (sessions.Session, error) {
	cur := s.store.Snapshot()
	if cur.State() != sessions.StatePendingVerification {
		return cur, errors.Wrap(hrerrors.ErrNoPendingVerification, "[VerifyOTP]")
	}
	if email == "" {
		email = cur.PendingEmail
	}

	req := verifyRequest{Email: email, OTP: strings.TrimSpace(code)}
	resp, err := apiclient.Do(ctx, s.api, http.MethodPost, VerifyPath, req, apiclient.Options{SkipAuth: true})
	if err != nil {
		return s.rejected("VerifyOTP", err, hrerrors.ErrInvalidOTP, "Verification failed")
	}

	var body authResponse
	if err := resp.Decode(&body); err != nil {
		return s.rejected("VerifyOTP", errors.Wrap(err, "[VerifyOTP] response"), hrerrors.ErrInternal, "Verification failed")
	}
	if err := s.store.CompleteVerification(body.User, body.token()); err != nil {
		if errors.Is(err, hrerrors.ErrMissingUser) {
			return s.rejected("VerifyOTP", err, hrerrors.ErrInternal, "Verification failed")
		}
		return s.store.Snapshot(), errors.Wrap(err, "[VerifyOTP] complete verification")
	}
	s.logger.Info().Str("user_id", body.User.ID).Msg("verification complete")
	return s.store.Snapshot(), nil
}

// SilentRefresh exchanges the refresh cookie for a new access token. It is meant for the
// refresh coordinator and for Restore. Any failure clears the session.
func (s *Service) SilentRefresh(ctx context.Context) error {
	resp, err := apiclient.Do(ctx, s.api, http.MethodGet, RefreshPath, nil, apiclient.Options{SkipAuth: true})
	if err != nil {
		return s.refreshFailed(newAuthError("SilentRefresh", err, hrerrors.ErrRefreshExhausted, "Your session has expired"))
	}

	var body authResponse
	if err := resp.Decode(&body); err != nil {
		return s.refreshFailed(&AuthError{Op: "SilentRefresh", Message: "Your session has expired", Reason: hrerrors.ErrRefreshExhausted, Err: err})
	}
	if err := s.store.ApplyRefresh(body.User, body.token()); err != nil {
		return s.refreshFailed(&AuthError{Op: "SilentRefresh", Message: "Your session has expired", Reason: hrerrors.ErrRefreshExhausted, Err: err})
	}
	return nil
}

func (s *Service) refreshFailed(err *AuthError) error {
	// a refresh failure is always fatal to the session, including transient ones
	err.Reason = hrerrors.ErrRefreshExhausted
	s.store.Clear()
	log.Err(err).Msg("silent refresh failed, session cleared")
	return err
}

// Logout tells the backend and clears the session. The backend call is best effort: its
// failure is logged and the local session is cleared regardless.
func (s *Service) Logout(ctx context.Context) {
	req := &apiclient.Request{
		Method:  http.MethodPost,
		Path:    LogoutPath,
		Header:  http.Header{},
		Options: apiclient.Options{SkipAuth: true, IsLogoutRequest: true},
	}
	if tok := s.store.Token(); tok != nil {
		req.Header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutBudget)
	defer cancel()
	if _, err := s.api.Send(callCtx, req); err != nil {
		log.Err(err).Msg("logout request failed, clearing local session anyway")
	}

	s.store.Clear()
	if s.cookies != nil {
		s.cookies.ResetCookies()
	}
	s.logger.Info().Msg("logged out")
}

// Restore loads a persisted session and revalidates it with a silent refresh before it is
// trusted. It reports whether a session was restored. A record that fails revalidation is deleted.
func (s *Service) Restore(ctx context.Context, repo sessions.Repo) (bool, error) {
	if repo == nil {
		return false, errors.New("[Restore] repo is required")
	}
	if s.store.State() != sessions.StateAnonymous {
		return false, errors.Wrap(hrerrors.ErrInvalidTransition, "[Restore] session already active")
	}

	persisted, err := repo.Load(ctx)
	if errors.Is(err, hrerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Restore] load")
	}

	if s.cookies != nil {
		s.cookies.SetCookies(persisted.HTTPCookies(s.nowTime()))
	}
	if err := s.SilentRefresh(ctx); err != nil {
		if delErr := repo.Delete(ctx); delErr != nil {
			log.Err(delErr).Msg("failed to delete stale session")
		}
		return false, errors.Wrap(err, "[Restore] revalidate")
	}
	s.logger.Info().Str("saved_at", persisted.SavedAt.Format(time.RFC3339)).Msg("session restored")
	return true, nil
}

// rejected clears the session when the backend refused the operation. Transient failures leave
// the session untouched since the operation may not have happened.
func (s *Service) rejected(op string, err error, reason error, fallback string) (sessions.Session, error) {
	ae := newAuthError(op, err, reason, fallback)
	if ae.Transient() {
		log.Err(err).Str("op", op).Msg("backend unreachable")
		return s.store.Snapshot(), ae
	}
	s.store.Reject(ae.Message)
	log.Err(err).Str("op", op).Int("status", ae.Status).Msg("rejected")
	return s.store.Snapshot(), ae
}
