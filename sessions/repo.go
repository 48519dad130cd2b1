package sessions

import "context"

// Repo persists the session between process runs.
// Load returns errors.ErrNotFound (internal/errors) when nothing is stored.
type Repo interface {
	Save(ctx context.Context, p *Persisted) error
	Load(ctx context.Context) (*Persisted, error)
	Delete(ctx context.Context) error
}
