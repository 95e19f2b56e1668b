// Package events publishes account lifecycle notifications over NATS for
// external collaborators: the mailbox fetcher re-scopes its sync jobs and the
// analytics pipeline re-buckets usage when a tenancy changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// AccountEvent is the wire payload for account lifecycle subjects.
type AccountEvent struct {
	UserID     uuid.UUID `json:"userId"`
	BusinessID uuid.UUID `json:"businessId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher publishes account events. Publishing is best-effort: a failed
// publish is logged and dropped, never propagated to the caller. Subscribers
// that need exact state re-read it from the API.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a NATS-backed publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// AccountUpgraded publishes an upgrade notification
func (p *Publisher) AccountUpgraded(ctx context.Context, userID, businessID uuid.UUID) {
	p.publish(fmt.Sprintf("account.%s.upgraded", userID), userID, businessID)
}

// AccountDowngraded publishes a downgrade notification
func (p *Publisher) AccountDowngraded(ctx context.Context, userID, businessID uuid.UUID) {
	p.publish(fmt.Sprintf("account.%s.downgraded", userID), userID, businessID)
}

func (p *Publisher) publish(subject string, userID, businessID uuid.UUID) {
	event := AccountEvent{
		UserID:     userID,
		BusinessID: businessID,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal account event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish account event")
		return
	}

	log.Debug().Str("subject", subject).Msg("Published account event")
}
