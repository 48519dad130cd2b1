package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind the opaque refresh cookie.
type StoredRefreshToken struct {
	Token     string    // The random token string (sent to the client as an http-only cookie)
	UserID    string    // Owner of the session
	IssuedAt  time.Time // When the token was minted
	ExpiresAt time.Time // After this the client has to log in again
}

// Repo manages server-side storage of refresh token metadata, keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	DeleteByUserID(userID string) error
}
