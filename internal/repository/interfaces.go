package repository

import (
	"context"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AffiliateRepository provides read access to affiliates.
type AffiliateRepository interface {
	// FindByID returns an affiliate with its payout profile, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Affiliate, error)
}

// ConversionRepository provides access to affiliate_conversions.
type ConversionRepository interface {
	// ListCleared returns cleared conversions that are not items of an active
	// payout, newest first, joined with their affiliate. A non-empty
	// affiliateIDs restricts the result to those affiliates.
	ListCleared(ctx context.Context, db DBTX, affiliateIDs []uuid.UUID) ([]domain.ClearedConversion, error)

	// Claim moves the given conversions from cleared to processing and links
	// them to payoutID in one statement. Only rows that were still cleared are
	// returned.
	Claim(ctx context.Context, db DBTX, payoutID uuid.UUID, conversionIDs []uuid.UUID) ([]domain.Conversion, error)

	// Release returns processing conversions of the given payouts to cleared.
	Release(ctx context.Context, db DBTX, payoutIDs []uuid.UUID) (int64, error)

	// MarkPaid sets paid status and paid_at on every conversion of a payout.
	MarkPaid(ctx context.Context, db DBTX, payoutID uuid.UUID, paidAt time.Time) error

	// ListByPayout returns the conversions linked to a payout.
	ListByPayout(ctx context.Context, db DBTX, payoutID uuid.UUID) ([]domain.Conversion, error)
}

// BatchRepository provides access to affiliate_payout_batches.
type BatchRepository interface {
	// Create inserts a batch and fills in its server-side timestamps.
	Create(ctx context.Context, db DBTX, batch *domain.PayoutBatch) error

	// FindByID returns a batch by ID, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.PayoutBatch, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the batch.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutBatch, error)

	// Transition moves a batch to status `to` only if it is currently in one of
	// `from`. Returns false when no row matched. Stamps the timestamp column
	// that belongs to the target status.
	Transition(ctx context.Context, db DBTX, id uuid.UUID, from []domain.BatchStatus, to domain.BatchStatus) (bool, error)

	// List returns batches newest first with the total matching count.
	List(ctx context.Context, db DBTX, status domain.BatchStatus, limit, offset int) ([]domain.PayoutBatch, int, error)

	// Delete removes a batch; payouts and items cascade.
	Delete(ctx context.Context, db DBTX, id uuid.UUID) error

	// StatusTotals aggregates batch counts and net amounts per status.
	StatusTotals(ctx context.Context, db DBTX) (map[domain.BatchStatus]domain.StatusAggregate, error)
}

// PayoutRepository provides access to affiliate_payouts.
type PayoutRepository interface {
	// Create inserts a payout and fills in its server-side timestamps.
	Create(ctx context.Context, db DBTX, payout *domain.Payout) error

	// FindByID returns a payout by ID, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Payout, error)

	// FindByProviderID returns the payout carrying a provider disbursement id, or nil.
	FindByProviderID(ctx context.Context, db DBTX, providerID string) (*domain.Payout, error)

	// FindByReference returns the payout with an external reference, or nil.
	FindByReference(ctx context.Context, db DBTX, reference string) (*domain.Payout, error)

	// ListWithAffiliate returns the given payouts in the given status joined
	// with their affiliate, in the order of ids.
	ListWithAffiliate(ctx context.Context, db DBTX, ids []uuid.UUID, status domain.PayoutStatus) ([]domain.PayoutWithAffiliate, error)

	// ListByBatch returns all payouts of a batch.
	ListByBatch(ctx context.Context, db DBTX, batchID uuid.UUID) ([]domain.Payout, error)

	// ListForSync returns processing payouts that carry a provider id,
	// least recently updated first.
	ListForSync(ctx context.Context, db DBTX, limit int) ([]domain.Payout, error)

	// MarkDispatched records provider acceptance on a pending payout.
	MarkDispatched(ctx context.Context, db DBTX, id uuid.UUID, disbursementID, reference string, at time.Time) (bool, error)

	// SetReference stores the external reference before the provider call so
	// that a retry reuses it.
	SetReference(ctx context.Context, db DBTX, id uuid.UUID, reference string) error

	// Transition moves a payout from one status to another. Completed stamps
	// processed_at; failed stamps failed_at and failure_reason.
	Transition(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.PayoutStatus, reason *string, at time.Time) (bool, error)

	// ResetFailed moves failed payouts back to pending, clearing provider id,
	// failed_at and failure_reason. Returns the payouts that were reset.
	ResetFailed(ctx context.Context, db DBTX, ids []uuid.UUID) ([]domain.Payout, error)

	// History returns one filtered page plus total count and total amount.
	History(ctx context.Context, db DBTX, filter domain.PayoutFilter) ([]domain.PayoutHistoryRow, int, decimal.Decimal, error)

	// StatusTotals aggregates payout counts and amounts per status.
	StatusTotals(ctx context.Context, db DBTX) (map[domain.PayoutStatus]domain.StatusAggregate, error)
}

// PayoutItemRepository provides access to payout_items.
type PayoutItemRepository interface {
	// Insert writes one line item per conversion.
	Insert(ctx context.Context, db DBTX, items []domain.PayoutItem) error

	// ListByPayout returns the line items of a payout.
	ListByPayout(ctx context.Context, db DBTX, payoutID uuid.UUID) ([]domain.PayoutItem, error)
}

// ProgramConfigRepository reads affiliate_program_config.
type ProgramConfigRepository interface {
	// Get returns the single configuration row merged over defaults.
	Get(ctx context.Context, db DBTX) (*domain.ProgramConfig, error)
}

// ActivityRepository appends to admin_activity_log.
type ActivityRepository interface {
	Insert(ctx context.Context, db DBTX, entry *domain.ActivityEntry) error
	ListByTarget(ctx context.Context, db DBTX, targetID uuid.UUID, limit int) ([]domain.ActivityEntry, error)
}

// VerificationRepository provides access to admin_verifications.
type VerificationRepository interface {
	Insert(ctx context.Context, db DBTX, v *domain.Verification) error
	FindLatest(ctx context.Context, db DBTX, entityType string, entityID uuid.UUID) (*domain.Verification, error)
}

// AdminUserRepository provides access to admin_users.
type AdminUserRepository interface {
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.AdminUser, error)
	Create(ctx context.Context, db DBTX, user *domain.AdminUser) error
}

// OutboxRecord is an event_outbox row with its sequence id.
type OutboxRecord struct {
	SeqID int64
	domain.OutboxDraft
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns the oldest events for the relay.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]OutboxRecord, error)

	// MarkPublished deletes relayed events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error

	// Backlog returns the number of queued events and the oldest one's time.
	Backlog(ctx context.Context, db DBTX) (int, time.Time, error)
}
