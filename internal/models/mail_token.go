package models

import (
	"time"

	"github.com/google/uuid"
)

// MailProvider identifies the external mailbox provider a credential belongs to.
type MailProvider string

const (
	ProviderGmail   MailProvider = "gmail"
	ProviderOutlook MailProvider = "outlook"
	ProviderIMAP    MailProvider = "imap"
)

// MailToken is an external-mailbox credential. Tokens are keyed by the owning
// user's email and follow that user across tenancy changes: on upgrade every
// personal token is reassigned to the new business, on downgrade every token
// is detached back to personal scope.
type MailToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	UserEmail  string     `json:"userEmail" db:"user_email"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`

	Provider MailProvider `json:"provider" db:"provider"`

	// AccessToken and RefreshToken are stored AES-GCM encrypted.
	AccessToken  string `json:"-" db:"access_token"`
	RefreshToken string `json:"-" db:"refresh_token"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
}
