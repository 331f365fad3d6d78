package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/payouts/internal/cache"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/metrics"
	"github.com/attaboy/payouts/internal/notify"
	"github.com/attaboy/payouts/internal/policy"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/google/uuid"
)

const unknownFailure = "Unknown failure"

// Webhook results recorded in payout_webhooks_total.
const (
	webhookApplied      = "applied"
	webhookIgnored      = "ignored"
	webhookUnknown      = "unknown_payout"
	webhookUnauthorized = "unauthorized"
	webhookInvalid      = "invalid"
)

// Reconciler pulls provider status into local payouts and applies provider
// callbacks.
type Reconciler struct {
	db       DB
	repos    repository.Repositories
	provider PayoutProvider
	notifier notify.Notifier
	cache    *cache.PayoutViewCache
	stats    *metrics.PayoutMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	db DB,
	repos repository.Repositories,
	payoutProvider PayoutProvider,
	notifier notify.Notifier,
	viewCache *cache.PayoutViewCache,
	stats *metrics.PayoutMetrics,
	logger *slog.Logger,
) *Reconciler {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Reconciler{
		db:       db,
		repos:    repos,
		provider: payoutProvider,
		notifier: notifier,
		cache:    viewCache,
		stats:    stats,
		logger:   logger,
		now:      time.Now,
	}
}

// Sync queries the provider for each payout and writes only the statuses
// that changed. Completed and failed payouts are left as they are. Per-item
// errors never stop the remaining items.
func (r *Reconciler) Sync(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.SyncResult, error) {
	if len(payoutIDs) == 0 {
		return nil, domain.ErrValidation("payout_ids is required")
	}

	result := &domain.SyncResult{Updated: []domain.StatusChange{}, Errors: []domain.SyncError{}}
	batches := make(map[uuid.UUID]struct{})
	for _, id := range payoutIDs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, domain.SyncError{PayoutID: id, Error: "sync cancelled"})
			continue
		}
		change, batchID, err := r.syncOne(ctx, id, adminID)
		if err != nil {
			r.stats.IncReconcile(metrics.ReconcileError)
			result.Errors = append(result.Errors, domain.SyncError{PayoutID: id, Error: err.Error()})
			continue
		}
		if change == nil {
			r.stats.IncReconcile(metrics.ReconcileUnchanged)
			continue
		}
		r.stats.IncReconcile(metrics.ReconcileUpdated)
		result.Updated = append(result.Updated, *change)
		if batchID != nil {
			batches[*batchID] = struct{}{}
		}
	}

	for batchID := range batches {
		r.settleBatch(ctx, batchID)
	}
	if len(result.Updated) > 0 {
		r.cache.Invalidate(ctx)
	}
	return result, nil
}

// SyncPending reconciles up to limit processing payouts that carry a
// provider id, least recently updated first.
func (r *Reconciler) SyncPending(ctx context.Context, limit int) (*domain.SyncResult, error) {
	payouts, err := r.repos.Payouts.ListForSync(ctx, r.db, limit)
	if err != nil {
		return nil, domain.ErrInternal("list payouts to sync", err)
	}
	if len(payouts) == 0 {
		return &domain.SyncResult{Updated: []domain.StatusChange{}, Errors: []domain.SyncError{}}, nil
	}
	ids := make([]uuid.UUID, len(payouts))
	for i, p := range payouts {
		ids[i] = p.ID
	}
	return r.Sync(ctx, ids, uuid.Nil)
}

func (r *Reconciler) syncOne(ctx context.Context, id, adminID uuid.UUID) (*domain.StatusChange, *uuid.UUID, error) {
	payout, err := r.repos.Payouts.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load payout: %w", err)
	}
	if payout == nil {
		return nil, nil, fmt.Errorf("payout not found")
	}
	if payout.ProviderDisbursementID == nil || *payout.ProviderDisbursementID == "" {
		return nil, nil, fmt.Errorf("payout has no provider disbursement id")
	}
	// Terminal rows are final here as in HandleCallback; paid conversions stay paid.
	if payout.Status.Terminal() {
		return nil, nil, nil
	}

	start := time.Now()
	resp, err := r.provider.GetPayout(ctx, *payout.ProviderDisbursementID)
	r.stats.ObserveProvider(metrics.OperationGetPayout, start)
	if err != nil {
		return nil, nil, fmt.Errorf("provider status: %w", err)
	}

	next, ok := policy.MapProviderStatus(resp.Status)
	if !ok || next == payout.Status {
		return nil, nil, nil
	}
	reason := resp.FailureCode
	if reason == "" {
		reason = unknownFailure
	}
	change, err := r.apply(ctx, payout, next, reason, adminID, resp.Status)
	if err != nil {
		return nil, nil, err
	}
	return change, payout.BatchID, nil
}

// apply writes one status transition with its side effects. It returns nil
// when the payout moved concurrently.
func (r *Reconciler) apply(ctx context.Context, payout *domain.Payout, next domain.PayoutStatus, reason string, adminID uuid.UUID, providerStatus string) (*domain.StatusChange, error) {
	now := r.now()
	change := domain.StatusChange{PayoutID: payout.ID, OldStatus: payout.Status, NewStatus: next}

	var failure *string
	if next == domain.PayoutFailed {
		failure = strPtr(reason)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := r.repos.Payouts.Transition(ctx, tx, payout.ID, payout.Status, next, failure, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if next == domain.PayoutCompleted {
		if err := r.repos.Conversions.MarkPaid(ctx, tx, payout.ID, now); err != nil {
			return nil, err
		}
	}

	details := map[string]any{
		"payout_id":       payout.ID,
		"previous_status": payout.Status,
		"new_status":      next,
		"provider_status": providerStatus,
	}
	if failure != nil {
		details["failure_reason"] = *failure
	}
	entry := activity(domain.ActivityStatusSynced, adminID,
		fmt.Sprintf("Payout status changed from %s to %s", payout.Status, next), uuidPtr(payout.ID), details)
	entry.TargetUserID = uuidPtr(payout.AffiliateID)
	if err := r.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := r.repos.Outbox.Insert(ctx, tx, domain.NewPayoutStatusChangedEvent(payout.AffiliateID, change, reason)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	payout.Status = next
	payout.FailureReason = failure
	r.notifyChange(ctx, payout, now)
	return &change, nil
}

func (r *Reconciler) notifyChange(ctx context.Context, payout *domain.Payout, at time.Time) {
	if !payout.Status.Terminal() {
		return
	}
	affiliate, err := r.repos.Affiliates.FindByID(ctx, r.db, payout.AffiliateID)
	if err != nil || affiliate == nil {
		r.logger.Warn("status email skipped", "payout_id", payout.ID, "error", err)
		return
	}
	notice := payoutNotice(*payout, *affiliate, at)
	if payout.Status == domain.PayoutCompleted {
		err = r.notifier.PayoutSucceeded(ctx, notice)
	} else {
		err = r.notifier.PayoutFailed(ctx, notice)
	}
	if err != nil {
		r.logger.Warn("status email failed", "payout_id", payout.ID, "error", err)
	}
}

// settleBatch closes a processing batch once none of its payouts are pending.
func (r *Reconciler) settleBatch(ctx context.Context, batchID uuid.UUID) {
	payouts, err := r.repos.Payouts.ListByBatch(ctx, r.db, batchID)
	if err != nil {
		r.logger.Error("failed to load batch payouts", "batch_id", batchID, "error", err)
		return
	}
	statuses := make([]domain.PayoutStatus, len(payouts))
	for i, p := range payouts {
		statuses[i] = p.Status
	}
	status, done := policy.SettleBatch(statuses)
	if !done {
		return
	}
	ok, err := r.repos.Batches.Transition(ctx, r.db, batchID, []domain.BatchStatus{domain.BatchProcessing}, status)
	if err != nil {
		r.logger.Error("failed to settle batch", "batch_id", batchID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := r.repos.Outbox.Insert(ctx, r.db, domain.NewBatchFinalizedEvent(batchID, status)); err != nil {
		r.logger.Warn("failed to queue batch event", "batch_id", batchID, "error", err)
	}
	r.logger.Info("payout batch settled", "batch_id", batchID, "status", status)
}

// CallbackResult is the acknowledgement returned to the provider.
type CallbackResult struct {
	Received bool                 `json:"received"`
	Change   *domain.StatusChange `json:"change,omitempty"`
}

// HandleCallback verifies and applies a provider payout webhook. Callbacks
// for unknown payouts are acknowledged so the provider stops retrying.
func (r *Reconciler) HandleCallback(ctx context.Context, body []byte, token string) (*CallbackResult, error) {
	if !r.provider.VerifyCallbackToken(token) {
		r.stats.IncWebhook(webhookUnauthorized)
		return nil, domain.ErrUnauthorized("invalid callback token")
	}
	cb, err := provider.ParseCallback(body)
	if err != nil {
		r.stats.IncWebhook(webhookInvalid)
		return nil, domain.ErrValidation(err.Error())
	}

	payout, err := r.lookup(ctx, cb)
	if err != nil {
		return nil, domain.ErrInternal("find payout", err)
	}
	if payout == nil {
		r.stats.IncWebhook(webhookUnknown)
		r.logger.Warn("callback for unknown payout", "id", cb.ID, "reference_id", cb.ReferenceID)
		return &CallbackResult{Received: true}, nil
	}

	next, ok := policy.MapCallbackStatus(cb.Status)
	if !ok || payout.Status.Terminal() || next == payout.Status {
		r.stats.IncWebhook(webhookIgnored)
		return &CallbackResult{Received: true}, nil
	}

	change, err := r.apply(ctx, payout, next, cb.Reason(), uuid.Nil, cb.Status)
	if err != nil {
		return nil, domain.ErrInternal("apply callback", err)
	}
	if change == nil {
		r.stats.IncWebhook(webhookIgnored)
		return &CallbackResult{Received: true}, nil
	}
	r.stats.IncWebhook(webhookApplied)
	if payout.BatchID != nil {
		r.settleBatch(ctx, *payout.BatchID)
	}
	r.cache.Invalidate(ctx)
	return &CallbackResult{Received: true, Change: change}, nil
}

func (r *Reconciler) lookup(ctx context.Context, cb *provider.PayoutCallback) (*domain.Payout, error) {
	if cb.ID != "" {
		p, err := r.repos.Payouts.FindByProviderID(ctx, r.db, cb.ID)
		if err != nil || p != nil {
			return p, err
		}
	}
	if cb.ReferenceID != "" {
		return r.repos.Payouts.FindByReference(ctx, r.db, cb.ReferenceID)
	}
	return nil, nil
}
