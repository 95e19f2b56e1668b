package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

func newTestUser(t *testing.T, store storage.Store, email string, businessID *uuid.UUID, hash string) *models.User {
	t.Helper()

	user := &models.User{
		Email:         email,
		Name:          "Test User",
		PasswordHash:  hash,
		Role:          models.RoleAgent,
		BusinessID:    businessID,
		IsActive:      true,
		EmailVerified: true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email does not exist", func(t *testing.T) {
		resolver := NewResolver(storage.NewMemoryStore())

		info, err := resolver.Resolve(ctx, "nobody@example.com")
		require.NoError(t, err)
		require.False(t, info.Exists)
		require.Empty(t, info.AccountType)
	})

	t.Run("personal account", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := newTestUser(t, store, "solo@example.com", nil, "bcrypt-hash")

		info, err := NewResolver(store).Resolve(ctx, "solo@example.com")
		require.NoError(t, err)
		require.True(t, info.Exists)
		require.Equal(t, AccountPersonal, info.AccountType)
		require.Equal(t, user.ID, info.UserID)
		require.True(t, info.HasPassword)
	})

	t.Run("email is normalized", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := newTestUser(t, store, "Mixed.Case@Example.COM", nil, "hash")

		info, err := NewResolver(store).Resolve(ctx, "  mixed.case@example.com ")
		require.NoError(t, err)
		require.True(t, info.Exists)
		require.Equal(t, user.ID, info.UserID)
	})

	t.Run("business row wins over personal row", func(t *testing.T) {
		store := storage.NewMemoryStore()
		businessID := uuid.New()
		newTestUser(t, store, "both@example.com", nil, "hash")
		bizUser := newTestUser(t, store, "both@example.com", &businessID, "hash")

		info, err := NewResolver(store).Resolve(ctx, "both@example.com")
		require.NoError(t, err)
		require.Equal(t, AccountBusiness, info.AccountType)
		require.Equal(t, bizUser.ID, info.UserID)
		require.Equal(t, businessID, *info.BusinessID)
	})

	t.Run("inactive rows are ignored", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := newTestUser(t, store, "gone@example.com", nil, "hash")
		user.IsActive = false
		require.NoError(t, store.UpdateUser(ctx, user))

		info, err := NewResolver(store).Resolve(ctx, "gone@example.com")
		require.NoError(t, err)
		require.False(t, info.Exists)
	})

	t.Run("oauth sentinel means no password", func(t *testing.T) {
		store := storage.NewMemoryStore()
		newTestUser(t, store, "oauth@example.com", nil, models.GoogleOAuthSentinel)

		info, err := NewResolver(store).Resolve(ctx, "oauth@example.com")
		require.NoError(t, err)
		require.True(t, info.Exists)
		require.False(t, info.HasPassword)
	})

	t.Run("storage failure fails closed", func(t *testing.T) {
		resolver := NewResolver(&failingStore{Store: storage.NewMemoryStore()})

		_, err := resolver.Resolve(ctx, "anyone@example.com")
		require.Error(t, err)
	})
}

func TestResolver_CanLoginWithGoogle(t *testing.T) {
	ctx := context.Background()
	businessID := uuid.New()

	tests := []struct {
		name    string
		seed    func(t *testing.T, store storage.Store)
		allowed bool
	}{
		{
			name:    "new account is allowed",
			seed:    func(t *testing.T, store storage.Store) {},
			allowed: true,
		},
		{
			name: "personal account is allowed",
			seed: func(t *testing.T, store storage.Store) {
				newTestUser(t, store, "u@example.com", nil, "hash")
			},
			allowed: true,
		},
		{
			name: "business account with password must use password login",
			seed: func(t *testing.T, store storage.Store) {
				newTestUser(t, store, "u@example.com", &businessID, "hash")
			},
			allowed: false,
		},
		{
			name: "business account without password is allowed",
			seed: func(t *testing.T, store storage.Store) {
				newTestUser(t, store, "u@example.com", &businessID, models.GoogleOAuthSentinel)
			},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			tt.seed(t, store)

			allowed, err := NewResolver(store).CanLoginWithGoogle(ctx, "u@example.com")
			require.NoError(t, err)
			require.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestPrimaryAccount(t *testing.T) {
	businessID := uuid.New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	personalOld := &models.User{ID: uuid.New(), Email: "a@x.com", CreatedAt: base}
	personalNew := &models.User{ID: uuid.New(), Email: "a@x.com", CreatedAt: base.Add(time.Hour)}
	business := &models.User{ID: uuid.New(), Email: "a@x.com", CreatedAt: base.Add(2 * time.Hour), BusinessID: &businessID}

	t.Run("empty slice yields nil", func(t *testing.T) {
		require.Nil(t, PrimaryAccount(nil))
	})

	t.Run("business beats personal regardless of age", func(t *testing.T) {
		require.Equal(t, business, PrimaryAccount([]*models.User{personalOld, personalNew, business}))
	})

	t.Run("earliest created wins among personals", func(t *testing.T) {
		require.Equal(t, personalOld, PrimaryAccount([]*models.User{personalNew, personalOld}))
	})

	t.Run("order of candidates does not matter", func(t *testing.T) {
		a := PrimaryAccount([]*models.User{business, personalOld, personalNew})
		b := PrimaryAccount([]*models.User{personalNew, business, personalOld})
		require.Equal(t, a, b)
	})

	t.Run("equal timestamps fall back to id order", func(t *testing.T) {
		u1 := &models.User{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), CreatedAt: base}
		u2 := &models.User{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), CreatedAt: base}
		require.Equal(t, u1, PrimaryAccount([]*models.User{u2, u1}))
		require.Equal(t, u1, PrimaryAccount([]*models.User{u1, u2}))
	})
}

// failingStore makes email lookups fail to exercise the fail-closed path.
type failingStore struct {
	storage.Store
}

func (s *failingStore) GetUsersByEmail(ctx context.Context, email string) ([]*models.User, error) {
	return nil, errors.New("connection refused")
}
