package domain

import "time"

// Session is the time-bounded association between a client and a user.
type Session struct {
	ID        string
	User      User
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry instant at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
