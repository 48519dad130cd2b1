package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-hr-console/apiclient"
	"github.com/jrsteele09/go-hr-console/auth"
	"github.com/jrsteele09/go-hr-console/internal/config"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/jrsteele09/go-hr-console/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	testUserID    = "u1"
	testUserEmail = "jane.doe@example.com"
	testPassword  = "password123"
	testOTP       = "123456"
	refreshCookie = "refreshToken"
)

// fakeBackend answers the auth endpoints the way the HR backend does.
type fakeBackend struct {
	mfa           atomic.Bool
	refreshOK     atomic.Bool
	logoutCalls   atomic.Int32
	refreshCalls  atomic.Int32
	logoutAuthHdr atomic.Value
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != testUserEmail || creds.Password != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
			return
		}
		if b.mfa.Load() {
			writeJSON(w, http.StatusOK, map[string]any{"pendingVerification": true, "email": creds.Email})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "r1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"_id": testUserID, "name": "Jane"}, "token": "abc"})
	})
	mux.HandleFunc("POST /auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
			OTP   string `json:"otp"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != testUserEmail || body.OTP != testOTP {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid or expired OTP"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "r1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"id": testUserID}, "token": "abc"})
	})
	mux.HandleFunc("GET /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if r.Header.Get("Authorization") != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unexpected bearer"})
			return
		}
		ck, err := r.Cookie(refreshCookie)
		if !b.refreshOK.Load() || err != nil || ck.Value != "r1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Refresh token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"id": testUserID}, "accessToken": "xyz"})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logoutCalls.Add(1)
		b.logoutAuthHdr.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testFixture struct {
	backend *fakeBackend
	server  *httptest.Server
	client  *apiclient.Client
	store   *sessions.Store
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	backend := &fakeBackend{}
	backend.refreshOK.Store(true)
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	client, err := apiclient.New(config.EnvVars{APIBaseURL: srv.URL, RequestTimeout: time.Second})
	require.NoError(t, err)

	store := sessions.NewStore()
	service, err := auth.NewService(client, store, auth.WithCookieJar(client))
	require.NoError(t, err)

	return &testFixture{backend: backend, server: srv, client: client, store: store, service: service}
}

func validCreds() auth.Credentials {
	return auth.Credentials{Email: testUserEmail, Password: testPassword}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := auth.NewService(nil, sessions.NewStore())
	require.Error(t, err)

	f := setupTestFixture(t)
	_, err = auth.NewService(f.client, nil)
	require.Error(t, err)
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	f := setupTestFixture(t)

	sess, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)
	require.Equal(t, sessions.StateAuthenticated, sess.State())
	require.True(t, sess.IsAuthenticated())
	require.Equal(t, testUserID, sess.User.ID)
	require.Equal(t, "abc", sess.AccessToken)
	require.Equal(t, "abc", f.store.Token().AccessToken)
}

func TestLoginRejectedRecordsMessage(t *testing.T) {
	f := setupTestFixture(t)

	sess, err := f.service.Login(context.Background(), auth.Credentials{Email: testUserEmail, Password: "wrong"})
	require.Error(t, err)
	require.ErrorIs(t, err, hrerrors.ErrInvalidCredentials)

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.Status)
	require.Equal(t, "Invalid email or password", authErr.Message)
	require.False(t, authErr.Transient())

	require.Equal(t, sessions.StateAnonymous, sess.State())
	require.Nil(t, sess.User)
	require.Equal(t, "Invalid email or password", sess.LastError)
}

func TestLoginWhileAuthenticatedIsInvalid(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)

	_, err = f.service.Login(context.Background(), validCreds())
	require.ErrorIs(t, err, hrerrors.ErrInvalidTransition)
	require.True(t, f.store.IsAuthenticated())
}

func TestLoginTransientFailureLeavesState(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.mfa.Store(true)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)
	require.Equal(t, sessions.StatePendingVerification, f.store.State())

	f.server.Close()
	_, err = f.service.Login(context.Background(), validCreds())
	require.Error(t, err)

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	require.True(t, authErr.Transient())
	require.True(t, apiclient.IsTransient(err))
	require.Equal(t, sessions.StatePendingVerification, f.store.State())
}

func TestLoginWithSecondFactor(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.mfa.Store(true)

	sess, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)
	require.Equal(t, sessions.StatePendingVerification, sess.State())
	require.False(t, sess.IsAuthenticated())
	require.Empty(t, sess.AccessToken)
	require.Equal(t, testUserEmail, sess.PendingEmail)
	require.Nil(t, f.store.Token())

	sess, err = f.service.VerifyOTP(context.Background(), "", testOTP)
	require.NoError(t, err)
	require.Equal(t, sessions.StateAuthenticated, sess.State())
	require.False(t, sess.PendingVerification)
	require.Equal(t, "abc", sess.AccessToken)
}

func TestVerifyOTPWithoutLogin(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.VerifyOTP(context.Background(), testUserEmail, testOTP)
	require.ErrorIs(t, err, hrerrors.ErrNoPendingVerification)
	require.Equal(t, sessions.StateAnonymous, f.store.State())
}

func TestVerifyOTPRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.mfa.Store(true)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)

	sess, err := f.service.VerifyOTP(context.Background(), "", "000000")
	require.ErrorIs(t, err, hrerrors.ErrInvalidOTP)
	require.Equal(t, sessions.StateAnonymous, sess.State())
	require.Equal(t, "Invalid or expired OTP", sess.LastError)
}

func TestSilentRefreshUpdatesToken(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)

	require.NoError(t, f.service.SilentRefresh(context.Background()))
	require.Equal(t, "xyz", f.store.Snapshot().AccessToken)
	require.Equal(t, testUserID, f.store.CurrentUser().ID)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestSilentRefreshFailureClears(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)
	f.backend.refreshOK.Store(false)

	err = f.service.SilentRefresh(context.Background())
	require.ErrorIs(t, err, hrerrors.ErrRefreshExhausted)
	require.Equal(t, sessions.StateAnonymous, f.store.State())
	require.Nil(t, f.store.Token())
}

func TestLogoutClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)
	require.NotEmpty(t, f.client.Cookies())

	f.service.Logout(context.Background())
	require.Equal(t, sessions.StateAnonymous, f.store.State())
	require.Equal(t, int32(1), f.backend.logoutCalls.Load())
	require.Equal(t, "Bearer abc", f.backend.logoutAuthHdr.Load())
	require.Empty(t, f.client.Cookies())
}

func TestLogoutClearsWhenBackendUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), validCreds())
	require.NoError(t, err)

	f.server.Close()
	f.service.Logout(context.Background())

	snap := f.store.Snapshot()
	require.Equal(t, sessions.Session{}, snap)
	require.Nil(t, f.store.Token())
}

func TestRestoreRevalidates(t *testing.T) {
	f := setupTestFixture(t)
	repo := repofakes.NewFakeSessionRepo()
	require.NoError(t, repo.Save(context.Background(), &sessions.Persisted{
		User:        &sessions.User{ID: testUserID},
		AccessToken: "stale",
		Cookies:     []sessions.Cookie{{Name: refreshCookie, Value: "r1"}},
		SavedAt:     time.Now(),
	}))

	restored, err := f.service.Restore(context.Background(), repo)
	require.NoError(t, err)
	require.True(t, restored)
	require.Equal(t, "xyz", f.store.Snapshot().AccessToken)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestRestoreNothingPersisted(t *testing.T) {
	f := setupTestFixture(t)

	restored, err := f.service.Restore(context.Background(), repofakes.NewFakeSessionRepo())
	require.NoError(t, err)
	require.False(t, restored)
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
}

func TestRestoreRejectedDeletesRecord(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.refreshOK.Store(false)
	repo := repofakes.NewFakeSessionRepo()
	require.NoError(t, repo.Save(context.Background(), &sessions.Persisted{
		User:    &sessions.User{ID: testUserID},
		Cookies: []sessions.Cookie{{Name: refreshCookie, Value: "r1"}},
	}))

	restored, err := f.service.Restore(context.Background(), repo)
	require.ErrorIs(t, err, hrerrors.ErrRefreshExhausted)
	require.False(t, restored)
	require.Equal(t, sessions.StateAnonymous, f.store.State())

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, hrerrors.ErrNotFound)
}
