package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

func seedTicket(t *testing.T, store storage.Store, businessID *uuid.UUID, userEmail string, assignedTo *uuid.UUID) *models.Ticket {
	t.Helper()

	ticket := &models.Ticket{
		Subject:       "printer on fire",
		CustomerEmail: "customer@example.com",
		BusinessID:    businessID,
		UserEmail:     userEmail,
		AssignedTo:    assignedTo,
	}
	require.NoError(t, store.CreateTicket(context.Background(), ticket))
	return ticket
}

func ticketIDs(tickets []*models.Ticket) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(tickets))
	for _, ticket := range tickets {
		ids[ticket.ID] = true
	}
	return ids
}

func TestTicketScope(t *testing.T) {
	ctx := context.Background()
	businessID := uuid.New()
	agentA := uuid.New()
	agentB := uuid.New()

	store := storage.NewMemoryStore()
	own := seedTicket(t, store, &businessID, "", &agentA)
	unassigned := seedTicket(t, store, &businessID, "", nil)
	foreign := seedTicket(t, store, &businessID, "", &agentB)
	otherBusiness := seedTicket(t, store, ptr(uuid.New()), "", nil)
	personal := seedTicket(t, store, nil, "solo@example.com", nil)

	t.Run("manager sees everything in the business", func(t *testing.T) {
		id := Identity{UserID: uuid.New(), Role: models.RoleManager, BusinessID: &businessID}

		tickets, _, err := store.ListTickets(ctx, TicketScope(id), 50, 0)
		require.NoError(t, err)

		ids := ticketIDs(tickets)
		require.True(t, ids[own.ID])
		require.True(t, ids[unassigned.ID])
		require.True(t, ids[foreign.ID])
		require.False(t, ids[otherBusiness.ID])
		require.False(t, ids[personal.ID])
	})

	t.Run("agent sees own and unassigned, never another agent's", func(t *testing.T) {
		id := Identity{UserID: agentA, Role: models.RoleAgent, BusinessID: &businessID}

		tickets, _, err := store.ListTickets(ctx, TicketScope(id), 50, 0)
		require.NoError(t, err)

		ids := ticketIDs(tickets)
		require.True(t, ids[own.ID])
		require.True(t, ids[unassigned.ID])
		require.False(t, ids[foreign.ID])
	})

	t.Run("personal user is scoped by own email", func(t *testing.T) {
		id := Identity{UserID: uuid.New(), Email: "solo@example.com", Role: models.RoleAdmin}

		tickets, _, err := store.ListTickets(ctx, TicketScope(id), 50, 0)
		require.NoError(t, err)

		ids := ticketIDs(tickets)
		require.True(t, ids[personal.ID])
		require.Len(t, ids, 1)
	})
}

func TestKnowledgeScope(t *testing.T) {
	ctx := context.Background()
	businessID := uuid.New()
	store := storage.NewMemoryStore()

	published := &models.KnowledgeItem{Title: "refunds", Status: models.KnowledgePublished, BusinessID: &businessID}
	pending := &models.KnowledgeItem{Title: "draft", Status: models.KnowledgePending, BusinessID: &businessID}
	require.NoError(t, store.CreateKnowledgeItem(ctx, published))
	require.NoError(t, store.CreateKnowledgeItem(ctx, pending))

	id := Identity{UserID: uuid.New(), Role: models.RoleAgent, BusinessID: &businessID}

	t.Run("default view shows only published", func(t *testing.T) {
		items, total, err := store.ListKnowledgeItems(ctx, KnowledgeScope(id, false), 50, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		require.Equal(t, published.ID, items[0].ID)
	})

	t.Run("privileged all view includes pending", func(t *testing.T) {
		_, total, err := store.ListKnowledgeItems(ctx, KnowledgeScope(id, true), 50, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, total)
	})
}

func TestDepartmentScope(t *testing.T) {
	ctx := context.Background()
	businessID := uuid.New()
	store := storage.NewMemoryStore()

	biz := &models.Department{Name: "Billing", BusinessID: &businessID}
	personal := &models.Department{Name: "Inbox", UserEmail: "solo@example.com"}
	require.NoError(t, store.CreateDepartment(ctx, biz))
	require.NoError(t, store.CreateDepartment(ctx, personal))

	t.Run("business tenancy", func(t *testing.T) {
		id := Identity{BusinessID: &businessID, Role: models.RoleAgent}
		depts, total, err := store.ListDepartments(ctx, DepartmentScope(id), 50, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		require.Equal(t, biz.ID, depts[0].ID)
	})

	t.Run("personal tenancy", func(t *testing.T) {
		id := Identity{Email: "solo@example.com", Role: models.RoleAgent}
		depts, total, err := store.ListDepartments(ctx, DepartmentScope(id), 50, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		require.Equal(t, personal.ID, depts[0].ID)
	})
}

func ptr[T any](v T) *T { return &v }
