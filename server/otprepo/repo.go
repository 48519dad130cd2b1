package otprepo

import "time"

// Pending is a login that passed the password check and awaits its one-time code.
type Pending struct {
	UserID    string
	Email     string
	Code      string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repo interface {
	Upsert(email string, pending Pending) error
	Get(email string) (Pending, error)
	Delete(email string) error
}
