package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const conversionColumns = `c.id, c.affiliate_id, c.order_id, c.gmv, c.commission_amount,
	c.status, c.payout_id, c.paid_at, c.created_at`

type conversionRepo struct{}

// NewConversionRepository returns a pgx-backed ConversionRepository.
func NewConversionRepository() ConversionRepository {
	return &conversionRepo{}
}

// ListCleared excludes conversions already itemized on a payout whose batch
// has not failed. Items of ad-hoc payouts count unless the payout failed.
func (r *conversionRepo) ListCleared(ctx context.Context, db DBTX, affiliateIDs []uuid.UUID) ([]domain.ClearedConversion, error) {
	var filter []uuid.UUID
	if len(affiliateIDs) > 0 {
		filter = affiliateIDs
	}
	rows, err := db.Query(ctx, `
		SELECT `+conversionColumns+`, `+affiliateColumns+`
		FROM affiliate_conversions c
		JOIN affiliates a ON a.id = c.affiliate_id
		WHERE c.status = 'cleared'
		  AND ($1::uuid[] IS NULL OR c.affiliate_id = ANY($1))
		  AND NOT EXISTS (
		      SELECT 1
		      FROM payout_items pi
		      JOIN affiliate_payouts p ON p.id = pi.payout_id
		      LEFT JOIN affiliate_payout_batches b ON b.id = p.batch_id
		      WHERE pi.conversion_id = c.id
		        AND CASE WHEN p.batch_id IS NULL THEN p.status <> 'failed'
		                 ELSE b.status <> 'failed' END
		  )
		ORDER BY c.created_at DESC, c.id`, filter)
	if err != nil {
		return nil, fmt.Errorf("query cleared conversions: %w", err)
	}
	defer rows.Close()

	var out []domain.ClearedConversion
	for rows.Next() {
		var cc domain.ClearedConversion
		var gmv, commission pgtype.Numeric
		targets := append(conversionScanTargets(&cc.Conversion, &gmv, &commission), affiliateScanTargets(&cc.Affiliate)...)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan cleared conversion: %w", err)
		}
		if err := convertConversionAmounts(&cc.Conversion, gmv, commission); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *conversionRepo) Claim(ctx context.Context, db DBTX, payoutID uuid.UUID, conversionIDs []uuid.UUID) ([]domain.Conversion, error) {
	if len(conversionIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		UPDATE affiliate_conversions c
		SET status = 'processing', payout_id = $1
		WHERE c.id = ANY($2) AND c.status = 'cleared'
		RETURNING `+conversionColumns, payoutID, conversionIDs)
	if err != nil {
		return nil, fmt.Errorf("claim conversions: %w", err)
	}
	return collectConversions(rows)
}

func (r *conversionRepo) Release(ctx context.Context, db DBTX, payoutIDs []uuid.UUID) (int64, error) {
	if len(payoutIDs) == 0 {
		return 0, nil
	}
	tag, err := db.Exec(ctx, `
		UPDATE affiliate_conversions
		SET status = 'cleared', payout_id = NULL
		WHERE payout_id = ANY($1) AND status = 'processing'`, payoutIDs)
	if err != nil {
		return 0, fmt.Errorf("release conversions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *conversionRepo) MarkPaid(ctx context.Context, db DBTX, payoutID uuid.UUID, paidAt time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE affiliate_conversions
		SET status = 'paid', paid_at = $2
		WHERE payout_id = $1 AND status = 'processing'`, payoutID, paidAt)
	if err != nil {
		return fmt.Errorf("mark conversions paid: %w", err)
	}
	return nil
}

func (r *conversionRepo) ListByPayout(ctx context.Context, db DBTX, payoutID uuid.UUID) ([]domain.Conversion, error) {
	rows, err := db.Query(ctx, `
		SELECT `+conversionColumns+`
		FROM affiliate_conversions c
		WHERE c.payout_id = $1
		ORDER BY c.created_at DESC`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query payout conversions: %w", err)
	}
	return collectConversions(rows)
}

func conversionScanTargets(c *domain.Conversion, gmv, commission *pgtype.Numeric) []any {
	return []any{
		&c.ID, &c.AffiliateID, &c.OrderID, gmv, commission,
		&c.Status, &c.PayoutID, &c.PaidAt, &c.CreatedAt,
	}
}

func convertConversionAmounts(c *domain.Conversion, gmv, commission pgtype.Numeric) error {
	var err error
	if c.GMV, err = infra.NumericToDecimal(gmv); err != nil {
		return fmt.Errorf("convert conversion gmv: %w", err)
	}
	if c.CommissionAmount, err = infra.NumericToDecimal(commission); err != nil {
		return fmt.Errorf("convert conversion commission: %w", err)
	}
	return nil
}

func collectConversions(rows pgx.Rows) ([]domain.Conversion, error) {
	defer rows.Close()

	var out []domain.Conversion
	for rows.Next() {
		var c domain.Conversion
		var gmv, commission pgtype.Numeric
		if err := rows.Scan(conversionScanTargets(&c, &gmv, &commission)...); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		if err := convertConversionAmounts(&c, gmv, commission); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
