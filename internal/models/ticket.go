package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketPending  TicketStatus = "pending"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

// TicketPriority is the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Ticket is a support conversation opened from an inbound email.
type Ticket struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`

	Status   TicketStatus   `json:"status" db:"status"`
	Priority TicketPriority `json:"priority" db:"priority"`

	// CustomerEmail is the requester on the other side of the mailbox.
	CustomerEmail string `json:"customerEmail" db:"customer_email"`

	AssignedTo   *uuid.UUID `json:"assignedTo,omitempty" db:"assigned_to"`
	DepartmentID *uuid.UUID `json:"departmentId,omitempty" db:"department_id"`

	UserEmail  string     `json:"userEmail,omitempty" db:"user_email"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`
}
