package timetrackerrepo

import (
	"errors"
	"sort"
	"sync"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/internal/utils"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]*Record),
	}
}

func copyRecord(r *Record) *Record {
	cp := *r
	cp.CheckOutTime = utils.Clone(r.CheckOutTime)
	return &cp
}

// Upsert stores a copy so callers cannot modify the stored record.
func (r *InMemoryRepo) Upsert(record *Record) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.ID == "" || record.UserID == "" {
		return errors.New("record id and user id are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = copyRecord(record)
	return nil
}

func (r *InMemoryRepo) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, hrerrors.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (r *InMemoryRepo) ListByUser(userID string) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0)
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInTime.Before(out[j].CheckInTime)
	})
	return out, nil
}
