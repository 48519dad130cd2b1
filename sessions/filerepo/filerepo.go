// Package filerepo persists the session as a JSON file readable only by the current user.
package filerepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/rs/zerolog/log"
)

var _ sessions.Repo = (*Repo)(nil)

type Repo struct {
	path string
}

// New creates the parent directory of path when it does not exist yet.
func New(path string) (*Repo, error) {
	if path == "" {
		return nil, errors.New("[filerepo.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filerepo.New] create dir: %w", err)
	}
	return &Repo{path: path}, nil
}

func (r *Repo) Path() string {
	return r.path
}

// Save writes to a temporary file and renames it into place so readers never see a partial file.
func (r *Repo) Save(_ context.Context, p *sessions.Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("[filerepo.Save] encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("[filerepo.Save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo.Save] chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo.Save] write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filerepo.Save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("[filerepo.Save] rename: %w", err)
	}
	return nil
}

func (r *Repo) Load(_ context.Context) (*sessions.Persisted, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, hrerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[filerepo.Load] read: %w", err)
	}
	var p sessions.Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("[filerepo.Load] decode: %w", err)
	}
	return &p, nil
}

func (r *Repo) Delete(_ context.Context) error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[filerepo.Delete] %w", err)
	}
	return nil
}

// Watch calls fn whenever another writer changes the session file, with nil once it is removed.
// The directory is watched rather than the file because Save replaces the file by rename.
// Watch blocks until ctx is done.
func (r *Repo) Watch(ctx context.Context, fn func(*sessions.Persisted)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("[filerepo.Watch] watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("[filerepo.Watch] add: %w", err)
	}

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			p, err := r.Load(ctx)
			switch {
			case errors.Is(err, hrerrors.ErrNotFound):
				fn(nil)
			case err != nil:
				// a half written file from a foreign writer, the next event will carry the final content
				log.Debug().Err(err).Str("path", r.path).Msg("session file unreadable")
			default:
				fn(p)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", r.path).Msg("session file watcher error")
		}
	}
}
