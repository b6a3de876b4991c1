package session

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is a host login session as written by the CMS.
type Session struct {
	ID          int64
	UserID      int64
	Email       string
	DisplayName string
	Roles       []string
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Revoked     bool
}

func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.Revoked && now.Before(s.ExpiresAt)
}
