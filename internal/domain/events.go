package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(agg AggregateType, id uuid.UUID, partition uuid.UUID, evt EventType, payload any) OutboxDraft {
	raw, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   id.String(),
		EventType:     evt,
		PartitionKey:  partition.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       raw,
		OccurredAt:    time.Now(),
	}
}

// NewBatchCreatedEvent announces a newly persisted batch.
func NewBatchCreatedEvent(b *PayoutBatch) OutboxDraft {
	return newDraft(AggregateBatch, b.ID, b.ID, EventBatchCreated, b)
}

// NewBatchDeletedEvent announces removal of a pending batch.
func NewBatchDeletedEvent(batchID uuid.UUID, adminID uuid.UUID) OutboxDraft {
	return newDraft(AggregateBatch, batchID, batchID, EventBatchDeleted, map[string]string{
		"batch_id":      batchID.String(),
		"admin_user_id": adminID.String(),
	})
}

// NewBatchVerifiedEvent announces an admin sign-off.
func NewBatchVerifiedEvent(v *Verification) OutboxDraft {
	return newDraft(AggregateBatch, v.TargetEntityID, v.TargetEntityID, EventBatchVerified, v)
}

// NewBatchFinalizedEvent announces a batch reaching completed or failed.
func NewBatchFinalizedEvent(batchID uuid.UUID, status BatchStatus) OutboxDraft {
	return newDraft(AggregateBatch, batchID, batchID, EventBatchFinalized, map[string]string{
		"batch_id": batchID.String(),
		"status":   string(status),
	})
}

// NewPayoutDispatchedEvent announces a payout accepted by the provider.
// Partitioned by affiliate so per-affiliate ordering is kept.
func NewPayoutDispatchedEvent(p *Payout, disbursementID, reference string) OutboxDraft {
	return newDraft(AggregatePayout, p.ID, p.AffiliateID, EventPayoutDispatched, map[string]any{
		"payout_id":       p.ID.String(),
		"affiliate_id":    p.AffiliateID.String(),
		"batch_id":        p.BatchID,
		"net_amount":      p.NetAmount,
		"disbursement_id": disbursementID,
		"reference":       reference,
	})
}

// NewPayoutStatusChangedEvent announces a reconciled status transition.
func NewPayoutStatusChangedEvent(affiliateID uuid.UUID, change StatusChange, reason string) OutboxDraft {
	return newDraft(AggregatePayout, change.PayoutID, affiliateID, EventPayoutStatusChanged, map[string]string{
		"payout_id":  change.PayoutID.String(),
		"old_status": string(change.OldStatus),
		"new_status": string(change.NewStatus),
		"reason":     reason,
	})
}
