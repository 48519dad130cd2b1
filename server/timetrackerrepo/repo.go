package timetrackerrepo

import "time"

// Record is one check-in, closed by a check-out or by the server.
type Record struct {
	ID           string
	UserID       string
	CheckInTime  time.Time
	CheckOutTime *time.Time
	AutoClosed   bool
}

func (r *Record) Open() bool {
	return r.CheckOutTime == nil
}

type Repo interface {
	Upsert(record *Record) error
	Get(id string) (*Record, error)
	// ListByUser returns the user's records, oldest check-in first.
	ListByUser(userID string) ([]*Record, error)
}
