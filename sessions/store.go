// Package sessions holds the authentication state of the console and the ways to persist it.
package sessions

import (
	"fmt"
	"sync"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Listener observes every committed transition. Listeners run synchronously, in order,
// and must not call back into the Store's transition methods.
type Listener func(Session)

// Store is the single owner of the Session. Reads return copies; writes go through the
// transition methods, each of which validates the current state first.
type Store struct {
	writeMu sync.Mutex // serialises transitions together with their notifications

	mu      sync.RWMutex
	session Session
	bearer  *oauth2.Token

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	logger zerolog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns an empty, anonymous store.
func NewStore(options ...StoreOption) *Store {
	s := &Store{
		listeners: make(map[int]Listener),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.State()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated()
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.User.clone()
}

// Token returns the bearer token to attach to requests, or nil when there is none.
func (s *Store) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bearer == nil {
		return nil
	}
	t := *s.bearer
	return &t
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// CompleteLogin: Anonymous -> Authenticated, for logins without a second factor.
func (s *Store) CompleteLogin(user *User, accessToken string) error {
	return s.transition("CompleteLogin", func(cur Session) (Session, error) {
		if cur.State() != StateAnonymous {
			return cur, invalid("CompleteLogin", cur.State())
		}
		return authenticated(user, accessToken)
	})
}

// BeginVerification: Anonymous -> PendingVerification. No token is held while pending.
func (s *Store) BeginVerification(email string) error {
	return s.transition("BeginVerification", func(cur Session) (Session, error) {
		if cur.State() != StateAnonymous {
			return cur, invalid("BeginVerification", cur.State())
		}
		return Session{PendingVerification: true, PendingEmail: email}, nil
	})
}

// CompleteVerification: PendingVerification -> Authenticated.
func (s *Store) CompleteVerification(user *User, accessToken string) error {
	return s.transition("CompleteVerification", func(cur Session) (Session, error) {
		if cur.State() != StatePendingVerification {
			return cur, fmt.Errorf("[Store.CompleteVerification] %w", hrerrors.ErrNoPendingVerification)
		}
		return authenticated(user, accessToken)
	})
}

// ApplyRefresh: Anonymous|Authenticated -> Authenticated, after a successful silent refresh.
func (s *Store) ApplyRefresh(user *User, accessToken string) error {
	return s.transition("ApplyRefresh", func(cur Session) (Session, error) {
		if cur.State() == StatePendingVerification {
			return cur, invalid("ApplyRefresh", cur.State())
		}
		return authenticated(user, accessToken)
	})
}

// Clear returns to the empty Anonymous session from any state.
func (s *Store) Clear() {
	_ = s.transition("Clear", func(Session) (Session, error) {
		return Session{}, nil
	})
}

// Reject clears the session and keeps msg for display, e.g. after a refused login.
func (s *Store) Reject(msg string) {
	_ = s.transition("Reject", func(Session) (Session, error) {
		return Session{LastError: msg}, nil
	})
}

func authenticated(user *User, accessToken string) (Session, error) {
	if user == nil {
		return Session{}, hrerrors.ErrMissingUser
	}
	return Session{User: user.clone(), AccessToken: accessToken}, nil
}

func invalid(op string, from State) error {
	return fmt.Errorf("[Store.%s] from %s: %w", op, from, hrerrors.ErrInvalidTransition)
}

func (s *Store) transition(op string, fn func(Session) (Session, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	from := s.session.State()
	next, err := fn(s.session.clone())
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug().Err(err).Str("op", op).Str("from", string(from)).Msg("session transition refused")
		return err
	}
	s.session = next
	s.bearer = token.FromAccessToken(next.AccessToken)
	snapshot := next.clone()
	s.mu.Unlock()

	s.logger.Debug().Str("op", op).Str("from", string(from)).Str("to", string(snapshot.State())).Msg("session transition")

	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(snapshot.clone())
	}
	return nil
}
