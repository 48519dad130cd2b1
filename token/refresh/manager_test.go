package refresh_test

import (
	"testing"
	"time"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-hr-console/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestCreateValidateRevoke(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, time.Hour)

	rt, err := m.Create("u1")
	require.NoError(t, err)
	require.Len(t, rt.Token, 64)

	got, err := m.Validate(rt.Token)
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	m.Revoke(rt.Token)
	_, err = m.Validate(rt.Token)
	require.ErrorIs(t, err, hrerrors.ErrInvalidToken)
}

func TestValidateExpiredRemovesToken(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, time.Hour, refresh.WithNowFunc(func() time.Time { return now }))

	rt, err := m.Create("u1")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = m.Validate(rt.Token)
	require.ErrorIs(t, err, hrerrors.ErrTokenExpired)
	require.Zero(t, repo.Len())
}

func TestRevokeUser(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, 0)
	require.Equal(t, 7*24*time.Hour, m.Expiry())

	_, err := m.Create("u1")
	require.NoError(t, err)
	_, err = m.Create("u1")
	require.NoError(t, err)
	other, err := m.Create("u2")
	require.NoError(t, err)

	require.NoError(t, m.RevokeUser("u1"))
	require.Equal(t, 1, repo.Len())
	_, err = m.Validate(other.Token)
	require.NoError(t, err)
}
