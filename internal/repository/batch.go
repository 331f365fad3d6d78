package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const batchColumns = `id, name, payout_method, total_amount, fee_amount, net_amount,
	affiliate_count, conversion_count, status, created_by,
	verified_at, processed_at, completed_at, created_at, updated_at`

type batchRepo struct{}

// NewBatchRepository returns a pgx-backed BatchRepository.
func NewBatchRepository() BatchRepository {
	return &batchRepo{}
}

func (r *batchRepo) Create(ctx context.Context, db DBTX, b *domain.PayoutBatch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = domain.BatchPending
	}
	err := db.QueryRow(ctx, `
		INSERT INTO affiliate_payout_batches (id, name, payout_method, total_amount, fee_amount,
			net_amount, affiliate_count, conversion_count, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, string(b.PayoutMethod),
		infra.DecimalToNumeric(b.TotalAmount), infra.DecimalToNumeric(b.FeeAmount),
		infra.DecimalToNumeric(b.NetAmount),
		b.AffiliateCount, b.ConversionCount, string(b.Status), b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *batchRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.PayoutBatch, error) {
	row := db.QueryRow(ctx, `SELECT `+batchColumns+` FROM affiliate_payout_batches WHERE id = $1`, id)
	return scanBatch(row)
}

func (r *batchRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutBatch, error) {
	row := tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM affiliate_payout_batches WHERE id = $1 FOR UPDATE`, id)
	return scanBatch(row)
}

func (r *batchRepo) Transition(ctx context.Context, db DBTX, id uuid.UUID, from []domain.BatchStatus, to domain.BatchStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	// verified_at records the first sign-off; a processing->verified revert keeps it.
	tag, err := db.Exec(ctx, `
		UPDATE affiliate_payout_batches
		SET status = $3,
		    verified_at  = CASE WHEN $3 = 'verified' THEN COALESCE(verified_at, now()) ELSE verified_at END,
		    processed_at = CASE WHEN $3 = 'processing' AND processed_at IS NULL THEN now() ELSE processed_at END,
		    completed_at = CASE WHEN $3 IN ('completed', 'failed') THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1 AND status = ANY($2)`,
		id, fromStrs, string(to))
	if err != nil {
		return false, fmt.Errorf("transition batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *batchRepo) List(ctx context.Context, db DBTX, status domain.BatchStatus, limit, offset int) ([]domain.PayoutBatch, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var total int
	if err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM affiliate_payout_batches
		WHERE ($1 = '' OR status = $1)`, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT `+batchColumns+`
		FROM affiliate_payout_batches
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []domain.PayoutBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, *b)
	}
	return batches, total, rows.Err()
}

func (r *batchRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM affiliate_payout_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("batch", id.String())
	}
	return nil
}

func (r *batchRepo) StatusTotals(ctx context.Context, db DBTX) (map[domain.BatchStatus]domain.StatusAggregate, error) {
	rows, err := db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(net_amount), 0)
		FROM affiliate_payout_batches
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query batch totals: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.BatchStatus]domain.StatusAggregate)
	for rows.Next() {
		var status domain.BatchStatus
		var agg domain.StatusAggregate
		var amount pgtype.Numeric
		if err := rows.Scan(&status, &agg.Count, &amount); err != nil {
			return nil, fmt.Errorf("scan batch totals: %w", err)
		}
		if agg.Amount, err = infra.NullableNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert batch totals: %w", err)
		}
		out[status] = agg
	}
	return out, rows.Err()
}

func scanBatch(row pgx.Row) (*domain.PayoutBatch, error) {
	var b domain.PayoutBatch
	var total, fee, net pgtype.Numeric
	err := row.Scan(
		&b.ID, &b.Name, &b.PayoutMethod, &total, &fee, &net,
		&b.AffiliateCount, &b.ConversionCount, &b.Status, &b.CreatedBy,
		&b.VerifiedAt, &b.ProcessedAt, &b.CompletedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	if b.TotalAmount, err = infra.NumericToDecimal(total); err != nil {
		return nil, fmt.Errorf("convert batch total: %w", err)
	}
	if b.FeeAmount, err = infra.NumericToDecimal(fee); err != nil {
		return nil, fmt.Errorf("convert batch fee: %w", err)
	}
	if b.NetAmount, err = infra.NumericToDecimal(net); err != nil {
		return nil, fmt.Errorf("convert batch net: %w", err)
	}
	return &b, nil
}
