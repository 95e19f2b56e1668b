package account

import (
	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/internal/storage"
)

// Visibility scoping: every list query is filtered by the identity's tenancy.
// Business users see records carrying their business id, personal users see
// records carrying their own email. Role narrows the scope only for tickets.

// TicketScope computes the ticket visibility filter for an identity. Admins
// and managers see every ticket in scope; agents see only tickets assigned to
// them or unassigned ones, never another agent's ticket.
func TicketScope(id Identity) storage.TicketFilters {
	filters := storage.TicketFilters{}

	if id.IsBusiness() {
		filters.BusinessID = id.BusinessID
	} else {
		email := models.NormalizeEmail(id.Email)
		filters.UserEmail = &email
	}

	if id.Role == models.RoleAgent {
		userID := id.UserID
		filters.AssignedTo = &userID
		filters.IncludeUnassigned = true
	}

	return filters
}

// KnowledgeScope computes the knowledge base visibility filter. Without
// includeAll only published items are visible; the privileged "all" view is
// callers' responsibility to gate behind an admin/manager check.
func KnowledgeScope(id Identity, includeAll bool) storage.KnowledgeFilters {
	filters := storage.KnowledgeFilters{}

	if id.IsBusiness() {
		filters.BusinessID = id.BusinessID
	} else {
		email := models.NormalizeEmail(id.Email)
		filters.UserEmail = &email
	}

	if !includeAll {
		published := models.KnowledgePublished
		filters.Status = &published
	}

	return filters
}

// DepartmentScope computes the department visibility filter.
func DepartmentScope(id Identity) storage.DepartmentFilters {
	filters := storage.DepartmentFilters{}

	if id.IsBusiness() {
		filters.BusinessID = id.BusinessID
	} else {
		email := models.NormalizeEmail(id.Email)
		filters.UserEmail = &email
	}

	return filters
}
