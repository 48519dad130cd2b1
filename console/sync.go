package console

import (
	"context"
	"fmt"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
)

type watcher interface {
	Watch(ctx context.Context, fn func(*sessions.Persisted)) error
}

// SyncSession follows changes another process makes to the persisted session: a removed
// session signs this console out, a newer token is adopted. It blocks until ctx is done and
// needs a session repo that can be watched, such as the file repo.
func (c *Console) SyncSession(ctx context.Context) error {
	w, ok := c.repo.(watcher)
	if !ok {
		return fmt.Errorf("[Console.SyncSession] %T: %w", c.repo, hrerrors.ErrUnsupported)
	}
	return w.Watch(ctx, c.adopt)
}

func (c *Console) adopt(p *sessions.Persisted) {
	c.adopting.Store(true)
	defer c.adopting.Store(false)

	cur := c.store.Snapshot()
	if p == nil {
		if cur.IsAuthenticated() {
			c.logger.Info().Msg("session removed by another process")
			c.store.Clear()
			c.client.ResetCookies()
		}
		return
	}
	if p.AccessToken == "" || p.AccessToken == cur.AccessToken {
		return
	}
	c.client.SetCookies(p.HTTPCookies(c.nowTime()))
	if err := c.store.ApplyRefresh(p.User, p.AccessToken); err != nil {
		c.logger.Err(err).Msg("failed to adopt session written by another process")
		return
	}
	c.logger.Info().Msg("session updated by another process")
}
