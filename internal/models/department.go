package models

import (
	"time"

	"github.com/google/uuid"
)

// Department routes inbound tickets to a team. Exactly one of UserEmail or
// BusinessID is the authoritative scope discriminator, fixed at creation time
// by the owning account's tenancy.
type Department struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	UserEmail  string     `json:"userEmail,omitempty" db:"user_email"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`
}
