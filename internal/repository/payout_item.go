package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type payoutItemRepo struct{}

// NewPayoutItemRepository returns a pgx-backed PayoutItemRepository.
func NewPayoutItemRepository() PayoutItemRepository {
	return &payoutItemRepo{}
}

func (r *payoutItemRepo) Insert(ctx context.Context, db DBTX, items []domain.PayoutItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	payoutIDs := make([]uuid.UUID, len(items))
	conversionIDs := make([]uuid.UUID, len(items))
	amounts := make([]pgtype.Numeric, len(items))
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		ids[i] = items[i].ID
		payoutIDs[i] = items[i].PayoutID
		conversionIDs[i] = items[i].ConversionID
		amounts[i] = infra.DecimalToNumeric(items[i].Amount)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payout_items (id, payout_id, conversion_id, amount)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::numeric[])`,
		ids, payoutIDs, conversionIDs, amounts)
	if err != nil {
		return fmt.Errorf("insert payout items: %w", err)
	}
	return nil
}

func (r *payoutItemRepo) ListByPayout(ctx context.Context, db DBTX, payoutID uuid.UUID) ([]domain.PayoutItem, error) {
	rows, err := db.Query(ctx, `
		SELECT id, payout_id, conversion_id, amount, created_at
		FROM payout_items
		WHERE payout_id = $1
		ORDER BY created_at, id`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query payout items: %w", err)
	}
	defer rows.Close()

	var out []domain.PayoutItem
	for rows.Next() {
		var it domain.PayoutItem
		var amount pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.PayoutID, &it.ConversionID, &amount, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout item: %w", err)
		}
		if it.Amount, err = infra.NumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert payout item amount: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
