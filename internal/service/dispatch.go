package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/cache"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/guard"
	"github.com/attaboy/payouts/internal/metrics"
	"github.com/attaboy/payouts/internal/notify"
	"github.com/attaboy/payouts/internal/policy"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultCurrency = "PHP"

// Dispatcher submits pending payouts to the disbursement provider. Each
// payout succeeds or fails on its own; a failure never stops its siblings.
type Dispatcher struct {
	db          DB
	repos       repository.Repositories
	provider    PayoutProvider
	notifier    notify.Notifier
	breaker     *guard.CircuitBreaker
	inflight    *guard.IdempotencyGuard
	cache       *cache.PayoutViewCache
	stats       *metrics.PayoutMetrics
	concurrency int
	currency    string
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher creates a Dispatcher. A concurrency below 1 dispatches
// sequentially.
func NewDispatcher(
	db DB,
	repos repository.Repositories,
	payoutProvider PayoutProvider,
	notifier notify.Notifier,
	breaker *guard.CircuitBreaker,
	inflight *guard.IdempotencyGuard,
	viewCache *cache.PayoutViewCache,
	stats *metrics.PayoutMetrics,
	concurrency int,
	logger *slog.Logger,
) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if breaker == nil {
		breaker = guard.NewCircuitBreaker(5, 30*time.Second)
	}
	if inflight == nil {
		inflight = guard.NewIdempotencyGuard(0)
	}
	return &Dispatcher{
		db:          db,
		repos:       repos,
		provider:    payoutProvider,
		notifier:    notifier,
		breaker:     breaker,
		inflight:    inflight,
		cache:       viewCache,
		stats:       stats,
		concurrency: concurrency,
		currency:    defaultCurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// WithCurrency sets the ISO currency of submitted disbursements.
func (d *Dispatcher) WithCurrency(currency string) *Dispatcher {
	if currency != "" {
		d.currency = currency
	}
	return d
}

type dispatchOutcome struct {
	success *domain.DispatchSuccess
	failure *domain.DispatchFailure
}

// Dispatch submits the given pending payouts. Ids that are unknown or not
// pending are reported as failures. Results keep the order of payoutIDs.
func (d *Dispatcher) Dispatch(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.DispatchResult, error) {
	if len(payoutIDs) == 0 {
		return nil, domain.ErrValidation("payout_ids is required")
	}

	cfg, err := programConfig(ctx, d.db, d.repos.ProgramConfig)
	if err != nil {
		return nil, err
	}
	rows, err := d.repos.Payouts.ListWithAffiliate(ctx, d.db, payoutIDs, domain.PayoutPending)
	if err != nil {
		return nil, domain.ErrInternal("load pending payouts", err)
	}
	byID := make(map[uuid.UUID]domain.PayoutWithAffiliate, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	outcomes := make([]dispatchOutcome, len(payoutIDs))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range payoutIDs {
		row, ok := byID[id]
		if !ok {
			outcomes[i] = failed(id, "payout not found or not pending")
			continue
		}
		if ctx.Err() != nil {
			outcomes[i] = failed(id, "dispatch cancelled")
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = failed(id, "dispatch cancelled")
				return nil
			}
			outcomes[i] = d.dispatchOne(ctx, cfg, row, adminID)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.DispatchResult{
		Successes: []domain.DispatchSuccess{},
		Failures:  []domain.DispatchFailure{},
	}
	for _, o := range outcomes {
		if o.success != nil {
			result.Successes = append(result.Successes, *o.success)
			d.stats.IncDispatch(metrics.DispatchOutcomeSuccess)
		} else if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
			d.stats.IncDispatch(metrics.DispatchOutcomeFailure)
		}
	}
	if len(result.Successes) > 0 {
		d.cache.Invalidate(ctx)
	}
	return result, nil
}

func failed(id uuid.UUID, reason string) dispatchOutcome {
	return dispatchOutcome{failure: &domain.DispatchFailure{
		PayoutID:           id,
		Reason:             reason,
		DispatchErrorClass: policy.ClassifyDispatchError("", 0, reason),
	}}
}

// rejected classifies a provider failure by its error code and HTTP status
// when the provider answered, and by message otherwise.
func rejected(id uuid.UUID, err error) dispatchOutcome {
	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		return failed(id, err.Error())
	}
	return dispatchOutcome{failure: &domain.DispatchFailure{
		PayoutID:           id,
		Reason:             err.Error(),
		DispatchErrorClass: policy.ClassifyDispatchError(perr.ErrorCode, perr.StatusCode, perr.Message),
	}}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, cfg domain.ProgramConfig, p domain.PayoutWithAffiliate, adminID uuid.UUID) dispatchOutcome {
	log := d.logger.With("payout_id", p.ID, "affiliate_id", p.AffiliateID)

	eval := policy.ValidatePayoutProfile(cfg, p.Affiliate, p.PayoutMethod)
	if !eval.Passed() {
		return failed(p.ID, strings.Join(eval.Errors, "; "))
	}
	channel, err := policy.ResolveChannel(p.Affiliate, p.PayoutMethod)
	if err != nil {
		return failed(p.ID, err.Error())
	}

	reference := ""
	if p.Reference != nil {
		reference = *p.Reference
	}
	if reference == "" {
		reference = provider.NewReference(d.now())
		if err := d.repos.Payouts.SetReference(ctx, d.db, p.ID, reference); err != nil {
			return failed(p.ID, fmt.Sprintf("store reference: %v", err))
		}
	}

	if res := d.breaker.Check(ctx, providerKey); !res.Allowed {
		return failed(p.ID, res.Reason)
	}

	start := time.Now()
	resp, err := d.provider.CreatePayout(ctx, provider.PayoutRequest{
		ReferenceID:       reference,
		ChannelCode:       channel.Code,
		AccountNumber:     channel.AccountNumber,
		AccountHolderName: channel.AccountHolderName,
		Amount:            p.NetAmount,
		Currency:          d.currency,
		Description:       fmt.Sprintf("Affiliate commission payout %s", p.ID),
	})
	d.stats.ObserveProvider(metrics.OperationCreatePayout, start)
	if err != nil {
		var perr *provider.ProviderError
		if errors.As(err, &perr) && !perr.Retryable() {
			d.breaker.RecordSuccess(providerKey)
		} else {
			d.breaker.RecordFailure(providerKey)
		}
		log.Warn("disbursement rejected", "reference", reference, "error", err)
		return rejected(p.ID, err)
	}
	d.breaker.RecordSuccess(providerKey)

	if err := d.recordDispatch(ctx, p, channel, resp.ID, reference, adminID); err != nil {
		log.Error("disbursement created but not recorded", "disbursement_id", resp.ID, "error", err)
		return failed(p.ID, "disbursement created but database update failed: "+err.Error())
	}

	notice := payoutNotice(p.Payout, p.Affiliate, d.now())
	notice.Reference = reference
	if err := d.notifier.PayoutProcessing(ctx, notice); err != nil {
		log.Warn("processing email failed", "error", err)
	}

	log.Info("disbursement created", "disbursement_id", resp.ID, "reference", reference)
	return dispatchOutcome{success: &domain.DispatchSuccess{
		PayoutID:       p.ID,
		DisbursementID: resp.ID,
		Reference:      reference,
	}}
}

func (d *Dispatcher) recordDispatch(ctx context.Context, p domain.PayoutWithAffiliate, channel policy.Channel, disbursementID, reference string, adminID uuid.UUID) error {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := d.repos.Payouts.MarkDispatched(ctx, tx, p.ID, disbursementID, reference, d.now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("payout is no longer pending")
	}

	entry := activity(domain.ActivityPayoutSent, adminID,
		fmt.Sprintf("Sent payout of %s to %s", p.NetAmount.StringFixed(2), p.Affiliate.DisplayName()),
		uuidPtr(p.ID), map[string]any{
			"payout_id":       p.ID,
			"disbursement_id": disbursementID,
			"reference":       reference,
			"channel_code":    channel.Code,
			"account_number":  domain.MaskAccountNumber(channel.AccountNumber),
			"amount":          p.NetAmount,
		})
	entry.TargetUserID = uuidPtr(p.AffiliateID)
	if err := d.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return err
	}
	if err := d.repos.Outbox.Insert(ctx, tx, domain.NewPayoutDispatchedEvent(&p.Payout, disbursementID, reference)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ProcessBatch dispatches every pending payout of a verified batch and
// settles the batch from the outcome. If dispatch cannot start the batch is
// reverted to verified.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batchID, adminID uuid.UUID) (*domain.BatchProcessResult, error) {
	key := "batch:" + batchID.String()
	if res := d.inflight.Acquire(ctx, key); !res.Allowed {
		return nil, domain.ErrConflict(res.Reason)
	}
	defer d.inflight.Release(key)

	batch, err := d.repos.Batches.FindByID(ctx, d.db, batchID)
	if err != nil {
		return nil, domain.ErrInternal("get batch", err)
	}
	if batch == nil {
		return nil, domain.ErrNotFound("batch", batchID.String())
	}
	ok, err := d.repos.Batches.Transition(ctx, d.db, batchID, []domain.BatchStatus{domain.BatchVerified}, domain.BatchProcessing)
	if err != nil {
		return nil, domain.ErrInternal("start batch", err)
	}
	if !ok {
		return nil, domain.ErrInvalidState("batch", batchID.String(), string(batch.Status), string(domain.BatchVerified))
	}

	payouts, err := d.repos.Payouts.ListByBatch(ctx, d.db, batchID)
	if err != nil {
		d.revert(ctx, batchID)
		return nil, domain.ErrInternal("list batch payouts", err)
	}
	var ids []uuid.UUID
	for _, p := range payouts {
		if p.Status == domain.PayoutPending {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		d.revert(ctx, batchID)
		return nil, domain.ErrValidation("batch has no pending payouts")
	}

	result, err := d.Dispatch(ctx, ids, adminID)
	if err != nil {
		d.revert(ctx, batchID)
		return nil, err
	}

	status := policy.BatchOutcome(len(result.Successes), len(result.Failures))
	if err := d.finishBatch(ctx, batchID, status, adminID, result); err != nil {
		return nil, err
	}
	d.cache.Invalidate(ctx)

	d.logger.Info("payout batch processed",
		"batch_id", batchID,
		"status", status,
		"successes", len(result.Successes),
		"failures", len(result.Failures),
	)
	return &domain.BatchProcessResult{BatchID: batchID, Status: status, Result: *result}, nil
}

func (d *Dispatcher) revert(ctx context.Context, batchID uuid.UUID) {
	if _, err := d.repos.Batches.Transition(ctx, d.db, batchID,
		[]domain.BatchStatus{domain.BatchProcessing}, domain.BatchVerified); err != nil {
		d.logger.Error("failed to revert batch status", "batch_id", batchID, "error", err)
	}
}

func (d *Dispatcher) finishBatch(ctx context.Context, batchID uuid.UUID, status domain.BatchStatus, adminID uuid.UUID, result *domain.DispatchResult) error {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if status != domain.BatchProcessing {
		if _, err := d.repos.Batches.Transition(ctx, tx, batchID,
			[]domain.BatchStatus{domain.BatchProcessing}, status); err != nil {
			return domain.ErrInternal("settle batch", err)
		}
		if err := d.repos.Outbox.Insert(ctx, tx, domain.NewBatchFinalizedEvent(batchID, status)); err != nil {
			return domain.ErrInternal("insert outbox event", err)
		}
	}

	entry := activity(domain.ActivityBatchProcessed, adminID,
		fmt.Sprintf("Processed payout batch: %d sent, %d failed", len(result.Successes), len(result.Failures)),
		uuidPtr(batchID), map[string]any{
			"batch_id":  batchID,
			"status":    status,
			"successes": len(result.Successes),
			"failures":  result.Failures,
		})
	if err := d.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return domain.ErrInternal("log activity", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}
	return nil
}

// RetryFailed resets failed payouts to pending and dispatches them again.
// Pending payouts stranded in a failed batch, where every first dispatch
// was rejected, are dispatched as well. Batch status is left untouched:
// a completed or failed batch is final and its payouts are reconciled
// one by one.
func (d *Dispatcher) RetryFailed(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.DispatchResult, error) {
	if len(payoutIDs) == 0 {
		return nil, domain.ErrValidation("payout_ids is required")
	}

	reset, err := d.repos.Payouts.ResetFailed(ctx, d.db, payoutIDs)
	if err != nil {
		return nil, domain.ErrInternal("reset failed payouts", err)
	}
	taken := make(map[uuid.UUID]struct{}, len(reset))
	for _, p := range reset {
		taken[p.ID] = struct{}{}
	}
	var rest []uuid.UUID
	for _, id := range payoutIDs {
		if _, ok := taken[id]; !ok {
			rest = append(rest, id)
		}
	}
	stranded, err := d.strandedPending(ctx, rest)
	if err != nil {
		return nil, err
	}

	// Keep the caller's order.
	var ids []uuid.UUID
	for _, id := range payoutIDs {
		if _, ok := taken[id]; ok {
			ids = append(ids, id)
			delete(taken, id)
		} else if _, ok := stranded[id]; ok {
			ids = append(ids, id)
			delete(stranded, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrValidation("none of the given payouts are failed")
	}

	entry := activity(domain.ActivityPayoutRetried, adminID,
		fmt.Sprintf("Retrying %d failed payouts", len(ids)), nil, map[string]any{"payout_ids": ids})
	if err := d.repos.Activity.Insert(ctx, d.db, entry); err != nil {
		d.logger.Warn("failed to log retry activity", "error", err)
	}

	return d.Dispatch(ctx, ids, adminID)
}

// strandedPending returns the ids among payoutIDs that are still pending
// inside a batch that already settled as failed.
func (d *Dispatcher) strandedPending(ctx context.Context, payoutIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{})
	if len(payoutIDs) == 0 {
		return out, nil
	}
	rows, err := d.repos.Payouts.ListWithAffiliate(ctx, d.db, payoutIDs, domain.PayoutPending)
	if err != nil {
		return nil, domain.ErrInternal("load pending payouts", err)
	}
	failed := make(map[uuid.UUID]bool)
	for _, p := range rows {
		if p.BatchID == nil {
			continue
		}
		isFailed, seen := failed[*p.BatchID]
		if !seen {
			batch, err := d.repos.Batches.FindByID(ctx, d.db, *p.BatchID)
			if err != nil {
				return nil, domain.ErrInternal("get batch", err)
			}
			isFailed = batch != nil && batch.Status == domain.BatchFailed
			failed[*p.BatchID] = isFailed
		}
		if isFailed {
			out[p.ID] = struct{}{}
		}
	}
	return out, nil
}

func payoutNotice(p domain.Payout, a domain.Affiliate, at time.Time) notify.PayoutNotice {
	n := notify.PayoutNotice{
		PayoutID:       p.ID,
		AffiliateName:  a.DisplayName(),
		AffiliateEmail: a.Email,
		Amount:         p.NetAmount,
		Method:         p.PayoutMethod,
		At:             at,
	}
	if p.Reference != nil {
		n.Reference = *p.Reference
	}
	if p.FailureReason != nil {
		n.FailureReason = *p.FailureReason
	}
	return n
}
