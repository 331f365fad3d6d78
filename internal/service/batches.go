package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
)

// CreateBatchRequest is the admin input for committing a batch.
type CreateBatchRequest struct {
	AffiliateIDs []uuid.UUID         `json:"affiliate_ids"`
	PayoutMethod domain.PayoutMethod `json:"payout_method"`
	Name         string              `json:"name,omitempty"`
}

// CreateBatch recomputes the preview for the requested affiliates and
// persists the batch, its payouts and their items in one transaction.
// Conversions are claimed with a conditional update; if another batch took
// any of them first the whole batch is rolled back.
func (s *PayoutService) CreateBatch(ctx context.Context, req CreateBatchRequest, adminID uuid.UUID) (*domain.BatchSummary, error) {
	if len(req.AffiliateIDs) == 0 {
		return nil, domain.ErrValidation("affiliate_ids is required")
	}
	if err := domain.ValidateBatchName(req.Name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	preview, err := s.PreviewBatch(ctx, req.AffiliateIDs, req.PayoutMethod)
	if err != nil {
		return nil, err
	}
	if len(preview.Rows) == 0 {
		return nil, domain.ErrValidation("no eligible affiliates")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Payout Batch " + s.now().Format("2006-01-02")
	}

	batch := &domain.PayoutBatch{
		Name:            name,
		PayoutMethod:    req.PayoutMethod,
		TotalAmount:     preview.Totals.TotalAmount,
		FeeAmount:       preview.Totals.FeeAmount,
		NetAmount:       preview.Totals.NetAmount,
		AffiliateCount:  preview.Totals.AffiliateCount,
		ConversionCount: preview.Totals.ConversionCount,
		Status:          domain.BatchPending,
	}
	if adminID != uuid.Nil {
		batch.CreatedBy = &adminID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repos.Batches.Create(ctx, tx, batch); err != nil {
		return nil, domain.ErrInternal("create batch", err)
	}

	payouts := make([]domain.Payout, 0, len(preview.Rows))
	for _, row := range preview.Rows {
		payout := &domain.Payout{
			AffiliateID:  row.AffiliateID,
			BatchID:      &batch.ID,
			Amount:       row.TotalAmount,
			FeeAmount:    row.FeeAmount,
			NetAmount:    row.NetAmount,
			PayoutMethod: req.PayoutMethod,
			Status:       domain.PayoutPending,
		}
		if err := s.repos.Payouts.Create(ctx, tx, payout); err != nil {
			return nil, domain.ErrInternal("create payout", err)
		}

		wanted := row.ConversionIDs()
		claimed, err := s.repos.Conversions.Claim(ctx, tx, payout.ID, wanted)
		if err != nil {
			return nil, domain.ErrInternal("claim conversions", err)
		}
		if len(claimed) != len(wanted) {
			return nil, domain.ErrConflict(fmt.Sprintf(
				"conversions for affiliate %s changed while the batch was being created (%d of %d still cleared)",
				row.AffiliateName, len(claimed), len(wanted)))
		}

		items := make([]domain.PayoutItem, len(claimed))
		for i, c := range claimed {
			items[i] = domain.PayoutItem{PayoutID: payout.ID, ConversionID: c.ID, Amount: c.CommissionAmount}
		}
		if err := s.repos.Items.Insert(ctx, tx, items); err != nil {
			return nil, domain.ErrInternal("insert payout items", err)
		}
		payouts = append(payouts, *payout)
	}

	entry := activity(domain.ActivityBatchCreated, adminID,
		fmt.Sprintf("Created payout batch %q", batch.Name), uuidPtr(batch.ID), map[string]any{
			"batch_id":        batch.ID,
			"affiliate_count": batch.AffiliateCount,
			"total_amount":    batch.TotalAmount,
			"payout_method":   batch.PayoutMethod,
		})
	if err := s.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return nil, domain.ErrInternal("log activity", err)
	}
	if err := s.repos.Outbox.Insert(ctx, tx, domain.NewBatchCreatedEvent(batch)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.cache.Invalidate(ctx)
	s.stats.IncBatchCreated()
	s.logger.Info("payout batch created",
		"batch_id", batch.ID,
		"affiliates", batch.AffiliateCount,
		"total", batch.TotalAmount.StringFixed(2),
	)
	return &domain.BatchSummary{Batch: *batch, Payouts: payouts}, nil
}

// VerifyBatch records an admin sign-off and moves a pending batch to verified.
// Verifying twice fails with a state error.
func (s *PayoutService) VerifyBatch(ctx context.Context, batchID, adminID uuid.UUID, notes string) (*domain.PayoutBatch, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	batch, err := s.repos.Batches.LockForUpdate(ctx, tx, batchID)
	if err != nil {
		return nil, domain.ErrInternal("lock batch", err)
	}
	if batch == nil {
		return nil, domain.ErrNotFound("batch", batchID.String())
	}

	ok, err := s.repos.Batches.Transition(ctx, tx, batchID, []domain.BatchStatus{domain.BatchPending}, domain.BatchVerified)
	if err != nil {
		return nil, domain.ErrInternal("verify batch", err)
	}
	if !ok {
		return nil, domain.ErrInvalidState("batch", batchID.String(), string(batch.Status), string(domain.BatchPending))
	}

	v := &domain.Verification{
		AdminUserID:      adminID,
		TargetEntityType: "payout_batch",
		TargetEntityID:   batchID,
		VerificationType: "batch_verification",
		IsVerified:       true,
		Notes:            strings.TrimSpace(notes),
	}
	if err := s.repos.Verifications.Insert(ctx, tx, v); err != nil {
		return nil, domain.ErrInternal("record verification", err)
	}

	entry := activity(domain.ActivityBatchVerified, adminID,
		fmt.Sprintf("Verified payout batch %q", batch.Name), uuidPtr(batchID), map[string]any{
			"batch_id": batchID,
			"notes":    v.Notes,
		})
	if err := s.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return nil, domain.ErrInternal("log activity", err)
	}
	if err := s.repos.Outbox.Insert(ctx, tx, domain.NewBatchVerifiedEvent(v)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.cache.Invalidate(ctx)
	batch.Status = domain.BatchVerified
	batch.VerifiedAt = &v.VerifiedAt
	return batch, nil
}

// DeleteBatch removes a pending batch and returns its conversions to cleared.
func (s *PayoutService) DeleteBatch(ctx context.Context, batchID, adminID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	batch, err := s.repos.Batches.LockForUpdate(ctx, tx, batchID)
	if err != nil {
		return domain.ErrInternal("lock batch", err)
	}
	if batch == nil {
		return domain.ErrNotFound("batch", batchID.String())
	}
	if batch.Status != domain.BatchPending {
		return domain.ErrInvalidState("batch", batchID.String(), string(batch.Status), string(domain.BatchPending))
	}

	payouts, err := s.repos.Payouts.ListByBatch(ctx, tx, batchID)
	if err != nil {
		return domain.ErrInternal("list batch payouts", err)
	}
	ids := make([]uuid.UUID, len(payouts))
	for i, p := range payouts {
		ids[i] = p.ID
	}
	released, err := s.repos.Conversions.Release(ctx, tx, ids)
	if err != nil {
		return domain.ErrInternal("release conversions", err)
	}
	if err := s.repos.Batches.Delete(ctx, tx, batchID); err != nil {
		return domain.ErrInternal("delete batch", err)
	}

	entry := activity(domain.ActivityBatchDeleted, adminID,
		fmt.Sprintf("Deleted payout batch %q", batch.Name), uuidPtr(batchID), map[string]any{
			"batch_id":             batchID,
			"payout_count":         len(payouts),
			"released_conversions": released,
		})
	if err := s.repos.Activity.Insert(ctx, tx, entry); err != nil {
		return domain.ErrInternal("log activity", err)
	}
	if err := s.repos.Outbox.Insert(ctx, tx, domain.NewBatchDeletedEvent(batchID, adminID)); err != nil {
		return domain.ErrInternal("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}

	s.cache.Invalidate(ctx)
	s.logger.Info("payout batch deleted", "batch_id", batchID, "released_conversions", released)
	return nil
}

// GetBatch returns one batch.
func (s *PayoutService) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.PayoutBatch, error) {
	batch, err := s.repos.Batches.FindByID(ctx, s.db, batchID)
	if err != nil {
		return nil, domain.ErrInternal("get batch", err)
	}
	if batch == nil {
		return nil, domain.ErrNotFound("batch", batchID.String())
	}
	return batch, nil
}

// BatchPage is one page of batches.
type BatchPage struct {
	Batches    []domain.PayoutBatch `json:"batches"`
	TotalCount int                  `json:"total_count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

// ListBatches returns batches newest first, optionally filtered by status.
func (s *PayoutService) ListBatches(ctx context.Context, status domain.BatchStatus, page, pageSize int) (*BatchPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	batches, total, err := s.repos.Batches.List(ctx, s.db, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, domain.ErrInternal("list batches", err)
	}
	if batches == nil {
		batches = []domain.PayoutBatch{}
	}
	return &BatchPage{Batches: batches, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

// BatchPayouts returns the payouts of a batch.
func (s *PayoutService) BatchPayouts(ctx context.Context, batchID uuid.UUID) ([]domain.Payout, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	payouts, err := s.repos.Payouts.ListByBatch(ctx, s.db, batchID)
	if err != nil {
		return nil, domain.ErrInternal("list batch payouts", err)
	}
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	return payouts, nil
}
