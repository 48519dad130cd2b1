package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
)

const tokenLength = 32 // 32 bytes = 256 bits

// Manager handles refresh token creation, validation and revocation
type Manager struct {
	repo    Repo
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, expiry time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		expiry:  expiry,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.expiry <= 0 {
		m.expiry = 7 * 24 * time.Hour
	}
	return m
}

func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// Create mints a new refresh token for userID. Any previous token of the user stays valid so
// several devices can be signed in at once.
func (m *Manager) Create(userID string) (*StoredRefreshToken, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := m.nowFunc()
	rt := &StoredRefreshToken{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiry),
	}
	if err := m.repo.Upsert(rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}

// Validate returns the stored token when it exists and has not expired. Expired tokens are removed.
func (m *Manager) Validate(token string) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, hrerrors.ErrInvalidToken
	}
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, hrerrors.ErrInvalidToken
	}
	if !m.nowFunc().Before(rt.ExpiresAt) {
		_ = m.repo.Delete(token)
		return nil, hrerrors.ErrTokenExpired
	}
	return rt, nil
}

// Revoke removes a refresh token from storage. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	if token == "" {
		return
	}
	_ = m.repo.Delete(token)
}

// RevokeUser signs the user out everywhere.
func (m *Manager) RevokeUser(userID string) error {
	return m.repo.DeleteByUserID(userID)
}
