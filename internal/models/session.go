package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side login session. BusinessID is denormalized from the
// owning user for fast request scoping and is rewritten whenever the user's
// tenancy changes.
type Session struct {
	Token      string     `json:"token" db:"token"`
	UserID     uuid.UUID  `json:"userId" db:"user_id"`
	Email      string     `json:"email" db:"email"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
