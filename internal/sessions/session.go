package sessions

import "time"

// DefaultTTL is the session lifetime when the caller does not choose one.
const DefaultTTL = 24 * time.Hour

// Session is a server-side login record. It tracks presentation-layer state
// and is independent of token validity.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Data      map[string]string `json:"data,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
