package otprepo

import (
	"fmt"
	"strings"
	"sync"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
)

// InMemoryRepo is an in-memory implementation of Repo keyed by normalised email.
type InMemoryRepo struct {
	mu      sync.RWMutex
	pending map[string]Pending
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		pending: make(map[string]Pending),
	}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Upsert replaces any earlier code for the same email.
func (r *InMemoryRepo) Upsert(email string, pending Pending) error {
	if key(email) == "" {
		return fmt.Errorf("email is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[key(email)] = pending
	return nil
}

func (r *InMemoryRepo) Get(email string) (Pending, error) {
	if key(email) == "" {
		return Pending{}, fmt.Errorf("email is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pending[key(email)]
	if !ok {
		return Pending{}, hrerrors.ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepo) Delete(email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key(email)) // already gone is not an error
	return nil
}
