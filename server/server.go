// Package server is a development backend for the HR console. It implements the auth and time
// tracker endpoints the console consumes, backed by in-memory repositories.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-hr-console/internal/config"
	"github.com/jrsteele09/go-hr-console/server/otprepo"
	"github.com/jrsteele09/go-hr-console/server/timetrackerrepo"
	"github.com/jrsteele09/go-hr-console/token"
	"github.com/jrsteele09/go-hr-console/token/refresh"
	"github.com/jrsteele09/go-hr-console/users"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the Server
type Repos struct {
	Users         users.UserRepo
	OTPs          otprepo.Repo
	TimeTrackers  timetrackerrepo.Repo
	RefreshTokens refresh.Repo
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	repos   Repos
	tokens  *token.Manager
	refresh *refresh.Manager
	nowTime func() time.Time
	otpGen  func() (string, error)

	refreshCalls atomic.Int64
}

type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithOTPGenerator replaces the random six digit code generator.
func WithOTPGenerator(gen func() (string, error)) ServerOption {
	return func(s *Server) {
		s.otpGen = gen
	}
}

func New(cfg config.Config, repos Repos, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if repos.Users == nil || repos.OTPs == nil || repos.TimeTrackers == nil || repos.RefreshTokens == nil {
		return nil, errors.New("[Server New] all repos are required")
	}
	if strings.TrimSpace(cfg.GetJWTSecret()) == "" {
		return nil, errors.New("[Server New] jwt secret is required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		repos:   repos,
		nowTime: time.Now,
		otpGen:  generateOTP,
	}
	for _, opt := range options {
		opt(s)
	}

	s.tokens = token.New(token.NewHMACSigner(cfg.GetJWTSecret()),
		token.WithAccessTokenExpiry(cfg.GetAccessTokenTTL()),
		token.WithNowFunc(s.nowTime),
	)
	s.refresh = refresh.NewManager(repos.RefreshTokens, cfg.GetRefreshTokenTTL(), refresh.WithNowFunc(s.nowTime))

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// PendingOTP returns the code awaiting verification for email. Development use only.
func (s *Server) PendingOTP(email string) (string, bool) {
	p, err := s.repos.OTPs.Get(email)
	if err != nil {
		return "", false
	}
	return p.Code, true
}

// Tokens exposes the access token manager, e.g. to mint expired tokens in tests.
func (s *Server) Tokens() *token.Manager {
	return s.tokens
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
