package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the permission level of a user inside their tenancy.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

// GoogleOAuthSentinel marks accounts created through Google OAuth that have
// never set a real password. A hash equal to this value counts as "no password".
const GoogleOAuthSentinel = "GOOGLE_OAUTH_NO_PASSWORD"

// User represents a helpdesk user. A user is owned by exactly one tenancy
// context: a Business (BusinessID set) or none (personal).
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`

	PasswordHash string `json:"-" db:"password_hash"`

	Role       Role       `json:"role" db:"role"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`

	IsActive      bool `json:"isActive" db:"is_active"`
	EmailVerified bool `json:"emailVerified" db:"email_verified"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`

	Settings Variables `json:"settings" db:"settings"`
}

// HasPassword reports whether the user has real password material set, as
// opposed to the Google OAuth sentinel.
func (u *User) HasPassword() bool {
	return u.PasswordHash != "" && u.PasswordHash != GoogleOAuthSentinel
}

// NormalizeEmail lower-cases and trims an email address. Emails are
// case-insensitive keys everywhere in the system.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
