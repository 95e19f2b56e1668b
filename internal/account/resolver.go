package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

// AccountType classifies the tenancy of a resolved account.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountBusiness AccountType = "business"
)

// AccountInfo is the result of resolving an email address.
type AccountInfo struct {
	Exists      bool        `json:"exists"`
	AccountType AccountType `json:"accountType,omitempty"`
	UserID      uuid.UUID   `json:"userId,omitempty"`
	BusinessID  *uuid.UUID  `json:"businessId,omitempty"`
	Role        models.Role `json:"role,omitempty"`
	HasPassword bool        `json:"hasPassword"`
	IsVerified  bool        `json:"isVerified"`
}

// Resolver determines what kind of account an email belongs to.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a new account resolver
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up all active accounts for the normalized email and reports
// the canonical one. A storage failure is returned as an error, never
// degraded to "does not exist": absence is a security-relevant fact and the
// resolver fails closed when it cannot prove it.
func (r *Resolver) Resolve(ctx context.Context, email string) (AccountInfo, error) {
	users, err := r.store.GetUsersByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return AccountInfo{}, fmt.Errorf("resolve account: %w", err)
	}

	primary := PrimaryAccount(users)
	if primary == nil {
		return AccountInfo{Exists: false}, nil
	}

	info := AccountInfo{
		Exists:      true,
		AccountType: AccountPersonal,
		UserID:      primary.ID,
		BusinessID:  primary.BusinessID,
		Role:        primary.Role,
		HasPassword: primary.HasPassword(),
		IsVerified:  primary.EmailVerified,
	}
	if primary.BusinessID != nil {
		info.AccountType = AccountBusiness
	}

	return info, nil
}

// CanLoginWithGoogle decides whether Google OAuth login is allowed for the
// email. A business seat with a real password must use password login so an
// OAuth personal login cannot shadow a paid seat; everything else is allowed.
func (r *Resolver) CanLoginWithGoogle(ctx context.Context, email string) (bool, error) {
	info, err := r.Resolve(ctx, email)
	if err != nil {
		return false, err
	}

	if !info.Exists {
		return true, nil
	}
	if info.AccountType == AccountBusiness && info.HasPassword {
		return false, nil
	}
	return true, nil
}

// PrimaryAccount picks the canonical account from candidate rows sharing one
// email. The order is total: business-linked rows beat personal ones (an
// existing paid seat must not be shadowed by an OAuth personal login), then
// earliest created, then smallest id. Returns nil for an empty slice.
func PrimaryAccount(users []*models.User) *models.User {
	var primary *models.User
	for _, user := range users {
		if primary == nil || lessCanonical(user, primary) {
			primary = user
		}
	}
	return primary
}

// lessCanonical reports whether a sorts before b in the canonical account
// order. It is a strict total order over distinct rows.
func lessCanonical(a, b *models.User) bool {
	if (a.BusinessID != nil) != (b.BusinessID != nil) {
		return a.BusinessID != nil
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
