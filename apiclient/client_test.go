package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-hr-console/apiclient"
	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) (*apiclient.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := apiclient.New(config.EnvVars{APIBaseURL: srv.URL + "/api", RequestTimeout: timeout})
	require.NoError(t, err)
	return c, srv
}

func TestSendDecodesJSON(t *testing.T) {
	var gotPath, gotContentType, gotRequestID string
	var gotBody map[string]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get(apiclient.HeaderRequestID)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	}), time.Second)

	resp, err := apiclient.Do(context.Background(), c, http.MethodPost, "/auth/login", map[string]string{"email": "a@b.c"}, apiclient.Options{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.Decode(&out))
	require.Equal(t, "u1", out.ID)
	require.Equal(t, "/api/auth/login", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.NotEmpty(t, gotRequestID)
	require.Equal(t, "a@b.c", gotBody["email"])
}

func TestSendHTTPErrorCarriesServerMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Already checked in"}`))
	}), time.Second)

	_, err := apiclient.Do(context.Background(), c, http.MethodPost, "/timetrackers/check-in", nil, apiclient.Options{})
	require.Error(t, err)

	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, apiclient.KindHTTP, apiErr.Kind)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "Already checked in", apiErr.Message)
	require.JSONEq(t, `{"message":"Already checked in"}`, string(apiErr.Body))
	require.False(t, apiclient.IsUnauthorized(err))
	require.Equal(t, "Already checked in", apiclient.Message(err, "fallback"))
}

func TestSendHTTPErrorGenericFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), time.Second)

	_, err := apiclient.Do(context.Background(), c, http.MethodGet, "/me", nil, apiclient.Options{})
	require.True(t, apiclient.IsUnauthorized(err))

	apiErr, _ := apiclient.AsError(err)
	require.Equal(t, http.StatusText(http.StatusUnauthorized), apiErr.Message)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 50*time.Millisecond)
	defer close(release)

	_, err := apiclient.Do(context.Background(), c, http.MethodGet, "/slow", nil, apiclient.Options{})
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, apiclient.KindTimeout, apiErr.Kind)
	require.True(t, apiclient.IsTransient(err))
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := apiclient.New(config.EnvVars{APIBaseURL: url, RequestTimeout: time.Second})
	require.NoError(t, err)

	_, err = apiclient.Do(context.Background(), c, http.MethodGet, "/gone", nil, apiclient.Options{})
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, apiclient.KindNetwork, apiErr.Kind)
	require.Contains(t, apiclient.Message(err, ""), "Unable to reach")
}

func TestCookiesRoundTrip(t *testing.T) {
	var seen string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("refreshToken"); err == nil {
			seen = ck.Value
		}
		if r.URL.Path == "/api/set" {
			http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
		}
	}), time.Second)

	ctx := context.Background()
	_, err := apiclient.Do(ctx, c, http.MethodGet, "/set", nil, apiclient.Options{})
	require.NoError(t, err)
	require.Len(t, c.Cookies(), 1)

	exported := c.Cookies()
	c.ResetCookies()
	require.Empty(t, c.Cookies())

	c.SetCookies(exported)
	_, err = apiclient.Do(ctx, c, http.MethodGet, "/echo", nil, apiclient.Options{})
	require.NoError(t, err)
	require.Equal(t, "r1", seen)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := apiclient.New(config.EnvVars{APIBaseURL: "/api"})
	require.Error(t, err)
}

func TestRequestCloneIsIndependent(t *testing.T) {
	orig := &apiclient.Request{Method: http.MethodGet, Path: "/x", Header: http.Header{"A": {"1"}}}
	c := orig.Clone()
	c.Header.Set("A", "2")
	c.Options.Retry = true

	require.Equal(t, "1", orig.Header.Get("A"))
	require.False(t, orig.Options.Retry)
}
