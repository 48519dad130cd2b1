package filerepo_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/jrsteele09/go-hr-console/sessions/filerepo"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *filerepo.Repo {
	t.Helper()
	r, err := filerepo.New(filepath.Join(t.TempDir(), "nested", "session.json"))
	require.NoError(t, err)
	return r
}

func persisted() *sessions.Persisted {
	return &sessions.Persisted{
		User:        &sessions.User{ID: "u1", Name: "Jane"},
		AccessToken: "abc",
		Cookies:     []sessions.Cookie{{Name: "refreshToken", Value: "r1"}},
		SavedAt:     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	_, err := r.Load(ctx)
	require.ErrorIs(t, err, hrerrors.ErrNotFound)

	require.NoError(t, r.Save(ctx, persisted()))

	info, err := os.Stat(r.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", got.User.ID)
	require.Equal(t, "abc", got.AccessToken)
	require.Equal(t, "r1", got.Cookies[0].Value)

	require.NoError(t, r.Delete(ctx))
	require.NoError(t, r.Delete(ctx))
	_, err = r.Load(ctx)
	require.ErrorIs(t, err, hrerrors.ErrNotFound)
}

func TestLoadCorruptFile(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0o600))

	_, err := r.Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, hrerrors.ErrNotFound)
}

func TestWatchObservesForeignWritesAndRemoval(t *testing.T) {
	r := newRepo(t)
	other, err := filerepo.New(r.Path())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []*sessions.Persisted
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Watch(ctx, func(p *sessions.Persisted) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		})
	}()

	last := func() (*sessions.Persisted, int) {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return nil, 0
		}
		return seen[len(seen)-1], len(seen)
	}

	// the watcher needs a moment to register before the first write
	require.Eventually(t, func() bool {
		_ = other.Save(context.Background(), persisted())
		p, n := last()
		return n > 0 && p != nil && p.AccessToken == "abc"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, other.Delete(context.Background()))
	require.Eventually(t, func() bool {
		p, n := last()
		return n > 0 && p == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
