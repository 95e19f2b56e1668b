package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/maildesk/maildesk-server/internal/storage"
)

func TestReconcileSession(t *testing.T) {
	ctx := context.Background()

	t.Run("in-sync session is untouched", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := newTestUser(t, store, "a@x.com", nil, "hash")
		session := seedSession(t, store, user)

		got, err := ReconcileSession(ctx, store, session)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Nil(t, session.BusinessID)
	})

	t.Run("stale session resyncs from the user row", func(t *testing.T) {
		store := storage.NewMemoryStore()
		user := newTestUser(t, store, "a@x.com", nil, "hash")
		session := seedSession(t, store, user)

		// Simulate a crash mid-migration: user moved, session did not.
		businessID := uuid.New()
		user.BusinessID = &businessID
		require.NoError(t, store.UpdateUser(ctx, user))

		got, err := ReconcileSession(ctx, store, session)
		require.NoError(t, err)
		require.Equal(t, businessID, *got.BusinessID)
		require.Equal(t, businessID, *session.BusinessID)

		// The persisted session was healed too.
		persisted, err := store.GetSession(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, businessID, *persisted.BusinessID)
	})
}
