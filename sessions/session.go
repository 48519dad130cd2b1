package sessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// State is the position of a Session in the authentication lifecycle.
type State string

const (
	StateAnonymous           State = "anonymous"
	StatePendingVerification State = "pending_verification"
	StateAuthenticated       State = "authenticated"
)

// User is the identity record returned by the backend. Raw keeps the blob exactly as received.
type User struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Email      string          `json:"email,omitempty"`
	Role       string          `json:"role,omitempty"`
	Department string          `json:"department,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

type userWire struct {
	ID         string          `json:"id"`
	MongoID    string          `json:"_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       string          `json:"role"`
	Department json.RawMessage `json:"department"`
}

type departmentRef struct {
	ID   string `json:"id"`
	OID  string `json:"_id"`
	Name string `json:"name"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = User{
		ID:    w.ID,
		Name:  w.Name,
		Email: w.Email,
		Role:  w.Role,
		Raw:   append(json.RawMessage(nil), data...),
	}
	if u.ID == "" {
		u.ID = w.MongoID
	}
	u.Department = departmentName(w.Department)
	return nil
}

// MarshalJSON writes the original blob back when there is one.
func (u User) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	type plain User
	return json.Marshal(plain(u))
}

// departmentName accepts either a plain string or a reference object.
func departmentName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var ref departmentRef
	if json.Unmarshal(raw, &ref) == nil {
		switch {
		case ref.Name != "":
			return ref.Name
		case ref.ID != "":
			return ref.ID
		}
		return ref.OID
	}
	return ""
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Raw = append(json.RawMessage(nil), u.Raw...)
	return &c
}

// Session is the current authentication context. It is only ever changed through a Store.
type Session struct {
	AccessToken         string
	User                *User
	PendingVerification bool
	PendingEmail        string
	LastError           string
}

// IsAuthenticated is derived from the presence of a user, never stored.
func (s Session) IsAuthenticated() bool {
	return s.User != nil
}

func (s Session) State() State {
	switch {
	case s.User != nil:
		return StateAuthenticated
	case s.PendingVerification:
		return StatePendingVerification
	}
	return StateAnonymous
}

func (s Session) clone() Session {
	c := s
	c.User = s.User.clone()
	return c
}

// Persisted is what survives a restart. It is never trusted until revalidated by a refresh.
type Persisted struct {
	User        *User     `json:"user,omitempty"`
	AccessToken string    `json:"accessToken,omitempty"`
	Cookies     []Cookie  `json:"cookies,omitempty"`
	SavedAt     time.Time `json:"savedAt"`
}

// Cookie is the persisted form of a backend cookie such as the refresh cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func CookiesFromHTTP(cookies []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return out
}

// HTTPCookies returns the cookies that have not expired at now.
func (p *Persisted) HTTPCookies(now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(p.Cookies))
	for _, c := range p.Cookies {
		if !c.Expires.IsZero() && !now.Before(c.Expires) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/", Expires: c.Expires})
	}
	return out
}
