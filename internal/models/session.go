package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one refresh-token login. The token itself never leaves the
// database; clients see only where and when the session was opened.
type Session struct {
	ID        uuid.UUID `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	UserID    int64     `json:"-"`
	UserAgent string    `json:"user_agent" example:"drive-cli/1.2 (linux; amd64)"`
	ClientIP  string    `json:"client_ip" example:"203.0.113.24"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
