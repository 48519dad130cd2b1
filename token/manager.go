// Package token issues and inspects the bearer tokens exchanged with the HR backend.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/pkg/errors"
)

// Identity is what an access token says about its bearer.
type Identity struct {
	UserID     string
	Email      string
	Name       string
	Role       string
	Department string
}

// Claims is the JWT payload of an access token.
type Claims struct {
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:     c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		Role:       c.Role,
		Department: c.Department,
	}
}

// Manager creates and verifies access tokens for the development backend.
type Manager struct {
	signer            Signer
	issuer            string
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = d
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
		issuer: "hr-console-dev",
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

func (m *Manager) CreateAccessToken(id Identity) (string, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return "", errors.New("[Manager.CreateAccessToken] user id is required")
	}
	now := m.nowFunc()
	claims := &Claims{
		Email:      id.Email,
		Name:       id.Name,
		Role:       id.Role,
		Department: id.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenExpiry)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAccessToken] sign")
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry against the manager's clock.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, hrerrors.ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, m.signer.GetVerificationKey,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithIssuer(m.issuer),
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, hrerrors.ErrTokenExpired
		}
		return nil, errors.Wrap(hrerrors.ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return nil, hrerrors.ErrInvalidToken
	}
	return claims, nil
}
