package models

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeStatus is the review state of a knowledge base item.
type KnowledgeStatus string

const (
	KnowledgePublished KnowledgeStatus = "published"
	KnowledgePending   KnowledgeStatus = "pending"
)

// KnowledgeItem is a knowledge base article used to ground AI responses.
// Non-privileged callers only ever see published items.
type KnowledgeItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Title   string          `json:"title" db:"title"`
	Content string          `json:"content" db:"content"`
	Status  KnowledgeStatus `json:"status" db:"status"`

	UserEmail  string     `json:"userEmail,omitempty" db:"user_email"`
	BusinessID *uuid.UUID `json:"businessId,omitempty" db:"business_id"`

	CreatedBy uuid.UUID `json:"createdBy" db:"created_by"`
}
