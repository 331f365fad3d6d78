package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventBatchCreated        EventType = "payouts.batch.created"
	EventBatchDeleted        EventType = "payouts.batch.deleted"
	EventBatchVerified       EventType = "payouts.batch.verified"
	EventBatchFinalized      EventType = "payouts.batch.finalized"
	EventPayoutDispatched    EventType = "payouts.payout.dispatched"
	EventPayoutStatusChanged EventType = "payouts.payout.status_changed"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateBatch  AggregateType = "batch"
	AggregatePayout AggregateType = "payout"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
