// Package attendance keeps a local check-in clock in step with the backend's time tracker.
package attendance

import (
	"time"

	"github.com/jrsteele09/go-hr-console/internal/utils"
)

// Session is one day's check-in record as reported by the backend.
type Session struct {
	CheckInTime  *time.Time `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	AutoClosed   bool       `json:"autoClosed,omitempty"`
}

// Active reports whether the user is checked in.
func (s Session) Active() bool {
	return s.CheckInTime != nil && s.CheckOutTime == nil
}

func (s Session) clone() Session {
	return Session{
		CheckInTime:  utils.Clone(s.CheckInTime),
		CheckOutTime: utils.Clone(s.CheckOutTime),
		AutoClosed:   s.AutoClosed,
	}
}

type State string

const (
	// StateUnknown is held before the first fetch and after a failed one.
	StateUnknown  State = "Unknown"
	StateInactive State = "Inactive"
	StateActive   State = "Active"
)

func stateOf(s Session) State {
	if s.Active() {
		return StateActive
	}
	return StateInactive
}

// Status is the reconciler's current view.
type Status struct {
	State   State
	Session Session
}

// logResponse is the body of check-in, check-out and daily-log. Daily-log may be {} or {"log":null}.
type logResponse struct {
	Log        *Session `json:"log"`
	AutoClosed bool     `json:"autoClosed"`
	Message    string   `json:"message"`
}

func (r logResponse) session() Session {
	if r.Log == nil {
		return Session{}
	}
	s := r.Log.clone()
	s.AutoClosed = s.AutoClosed || r.AutoClosed
	return s
}
