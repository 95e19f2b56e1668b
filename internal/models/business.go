package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier is the billing plan of a business tenant.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Business represents a shared tenancy. It is created on the first upgrade
// for an email and destroyed when its last member downgrades.
type Business struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// BusinessEmail is the unique find-or-create key.
	BusinessEmail string `json:"businessEmail" db:"business_email"`

	OwnerName        string           `json:"ownerName" db:"owner_name"`
	SubscriptionTier SubscriptionTier `json:"subscriptionTier" db:"subscription_tier"`

	EmailVerified bool `json:"emailVerified" db:"email_verified"`
}
