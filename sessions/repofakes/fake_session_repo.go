package repofakes

import (
	"context"
	"sync"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps the persisted session in memory.
type FakeSessionRepo struct {
	lock      sync.RWMutex
	persisted *sessions.Persisted
	saves     int
	SaveErr   error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

func (r *FakeSessionRepo) Save(_ context.Context, p *sessions.Persisted) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	cp := *p
	cp.Cookies = append([]sessions.Cookie(nil), p.Cookies...)
	r.persisted = &cp
	r.saves++
	return nil
}

func (r *FakeSessionRepo) Load(_ context.Context) (*sessions.Persisted, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.persisted == nil {
		return nil, hrerrors.ErrNotFound
	}
	cp := *r.persisted
	return &cp, nil
}

func (r *FakeSessionRepo) Delete(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.persisted = nil
	return nil
}

// Saves reports how many successful Save calls were made.
func (r *FakeSessionRepo) Saves() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.saves
}
