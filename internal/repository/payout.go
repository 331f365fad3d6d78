package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const payoutColumns = `p.id, p.affiliate_id, p.batch_id, p.amount, p.fee_amount, p.net_amount,
	p.payout_method, p.status, p.reference, p.provider_disbursement_id,
	p.processing_notes, p.failure_reason, p.scheduled_at, p.processed_at, p.failed_at,
	p.created_at, p.updated_at`

type payoutRepo struct{}

// NewPayoutRepository returns a pgx-backed PayoutRepository.
func NewPayoutRepository() PayoutRepository {
	return &payoutRepo{}
}

func (r *payoutRepo) Create(ctx context.Context, db DBTX, p *domain.Payout) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.PayoutPending
	}
	err := db.QueryRow(ctx, `
		INSERT INTO affiliate_payouts (id, affiliate_id, batch_id, amount, fee_amount, net_amount,
			payout_method, status, reference, processing_notes, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.AffiliateID, p.BatchID,
		infra.DecimalToNumeric(p.Amount), infra.DecimalToNumeric(p.FeeAmount), infra.DecimalToNumeric(p.NetAmount),
		string(p.PayoutMethod), string(p.Status), p.Reference, p.ProcessingNotes, p.ScheduledAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *payoutRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Payout, error) {
	row := db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM affiliate_payouts p WHERE p.id = $1`, id)
	return scanPayout(row)
}

func (r *payoutRepo) FindByProviderID(ctx context.Context, db DBTX, providerID string) (*domain.Payout, error) {
	row := db.QueryRow(ctx, `
		SELECT `+payoutColumns+` FROM affiliate_payouts p
		WHERE p.provider_disbursement_id = $1
		ORDER BY p.created_at DESC LIMIT 1`, providerID)
	return scanPayout(row)
}

func (r *payoutRepo) FindByReference(ctx context.Context, db DBTX, reference string) (*domain.Payout, error) {
	row := db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM affiliate_payouts p WHERE p.reference = $1`, reference)
	return scanPayout(row)
}

func (r *payoutRepo) ListWithAffiliate(ctx context.Context, db DBTX, ids []uuid.UUID, status domain.PayoutStatus) ([]domain.PayoutWithAffiliate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		SELECT `+payoutColumns+`, `+affiliateColumns+`
		FROM affiliate_payouts p
		JOIN affiliates a ON a.id = p.affiliate_id
		WHERE p.id = ANY($1) AND p.status = $2
		ORDER BY array_position($1, p.id)`, ids, string(status))
	if err != nil {
		return nil, fmt.Errorf("query payouts with affiliate: %w", err)
	}
	defer rows.Close()

	var out []domain.PayoutWithAffiliate
	for rows.Next() {
		var pa domain.PayoutWithAffiliate
		var amounts payoutAmounts
		targets := append(payoutScanTargets(&pa.Payout, &amounts), affiliateScanTargets(&pa.Affiliate)...)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan payout with affiliate: %w", err)
		}
		if err := amounts.apply(&pa.Payout); err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func (r *payoutRepo) ListByBatch(ctx context.Context, db DBTX, batchID uuid.UUID) ([]domain.Payout, error) {
	rows, err := db.Query(ctx, `
		SELECT `+payoutColumns+` FROM affiliate_payouts p
		WHERE p.batch_id = $1
		ORDER BY p.created_at, p.id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch payouts: %w", err)
	}
	return collectPayouts(rows)
}

func (r *payoutRepo) ListForSync(ctx context.Context, db DBTX, limit int) ([]domain.Payout, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(ctx, `
		SELECT `+payoutColumns+` FROM affiliate_payouts p
		WHERE p.status = 'processing' AND p.provider_disbursement_id IS NOT NULL
		ORDER BY p.updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query payouts for sync: %w", err)
	}
	return collectPayouts(rows)
}

func (r *payoutRepo) MarkDispatched(ctx context.Context, db DBTX, id uuid.UUID, disbursementID, reference string, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE affiliate_payouts
		SET status = 'processing', provider_disbursement_id = $2, reference = $3,
		    processed_at = $4, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, disbursementID, reference, at)
	if err != nil {
		return false, fmt.Errorf("mark payout dispatched: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *payoutRepo) SetReference(ctx context.Context, db DBTX, id uuid.UUID, reference string) error {
	_, err := db.Exec(ctx, `
		UPDATE affiliate_payouts SET reference = $2, updated_at = now()
		WHERE id = $1 AND reference IS NULL`, id, reference)
	if err != nil {
		return fmt.Errorf("set payout reference: %w", err)
	}
	return nil
}

func (r *payoutRepo) Transition(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.PayoutStatus, reason *string, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE affiliate_payouts
		SET status = $3,
		    processed_at   = CASE WHEN $3 = 'completed' THEN $5 ELSE processed_at END,
		    failed_at      = CASE WHEN $3 = 'failed' THEN $5 ELSE failed_at END,
		    failure_reason = CASE WHEN $3 = 'failed' THEN $4 ELSE failure_reason END,
		    updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), reason, at)
	if err != nil {
		return false, fmt.Errorf("transition payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *payoutRepo) ResetFailed(ctx context.Context, db DBTX, ids []uuid.UUID) ([]domain.Payout, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
		UPDATE affiliate_payouts p
		SET status = 'pending', provider_disbursement_id = NULL,
		    failed_at = NULL, failure_reason = NULL, updated_at = now()
		WHERE p.id = ANY($1) AND p.status = 'failed'
		RETURNING `+payoutColumns, ids)
	if err != nil {
		return nil, fmt.Errorf("reset failed payouts: %w", err)
	}
	return collectPayouts(rows)
}

func (r *payoutRepo) History(ctx context.Context, db DBTX, f domain.PayoutFilter) ([]domain.PayoutHistoryRow, int, decimal.Decimal, error) {
	f.Normalize()

	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("p.status = $%d", string(f.Status))
	}
	if f.AffiliateID != nil {
		add("p.affiliate_id = $%d", *f.AffiliateID)
	}
	if f.BatchID != nil {
		add("p.batch_id = $%d", *f.BatchID)
	}
	if f.PayoutMethod != "" {
		add("p.payout_method = $%d", string(f.PayoutMethod))
	}
	if f.DateFrom != nil {
		add("p.created_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("p.created_at <= $%d", *f.DateTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	var sum pgtype.Numeric
	err := db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(p.amount), 0)
		FROM affiliate_payouts p `+clause, args...).Scan(&total, &sum)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("count payout history: %w", err)
	}
	totalAmount, err := infra.NullableNumericToDecimal(sum)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("convert payout history total: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := db.Query(ctx, fmt.Sprintf(`
		SELECT `+payoutColumns+`, a.first_name, a.last_name, a.email
		FROM affiliate_payouts p
		JOIN affiliates a ON a.id = p.affiliate_id
		%s
		ORDER BY p.created_at DESC, p.id
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("query payout history: %w", err)
	}
	defer rows.Close()

	out := []domain.PayoutHistoryRow{}
	for rows.Next() {
		var h domain.PayoutHistoryRow
		var amounts payoutAmounts
		var aff domain.Affiliate
		targets := append(payoutScanTargets(&h.Payout, &amounts), &aff.FirstName, &aff.LastName, &h.AffiliateEmail)
		if err := rows.Scan(targets...); err != nil {
			return nil, 0, decimal.Zero, fmt.Errorf("scan payout history: %w", err)
		}
		if err := amounts.apply(&h.Payout); err != nil {
			return nil, 0, decimal.Zero, err
		}
		h.AffiliateName = aff.DisplayName()
		out = append(out, h)
	}
	return out, total, totalAmount, rows.Err()
}

func (r *payoutRepo) StatusTotals(ctx context.Context, db DBTX) (map[domain.PayoutStatus]domain.StatusAggregate, error) {
	rows, err := db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(net_amount), 0)
		FROM affiliate_payouts
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query payout totals: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.PayoutStatus]domain.StatusAggregate)
	for rows.Next() {
		var status domain.PayoutStatus
		var agg domain.StatusAggregate
		var amount pgtype.Numeric
		if err := rows.Scan(&status, &agg.Count, &amount); err != nil {
			return nil, fmt.Errorf("scan payout totals: %w", err)
		}
		if agg.Amount, err = infra.NullableNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert payout totals: %w", err)
		}
		out[status] = agg
	}
	return out, rows.Err()
}

type payoutAmounts struct {
	amount, fee, net pgtype.Numeric
}

func (a payoutAmounts) apply(p *domain.Payout) error {
	var err error
	if p.Amount, err = infra.NumericToDecimal(a.amount); err != nil {
		return fmt.Errorf("convert payout amount: %w", err)
	}
	if p.FeeAmount, err = infra.NumericToDecimal(a.fee); err != nil {
		return fmt.Errorf("convert payout fee: %w", err)
	}
	if p.NetAmount, err = infra.NumericToDecimal(a.net); err != nil {
		return fmt.Errorf("convert payout net: %w", err)
	}
	return nil
}

func payoutScanTargets(p *domain.Payout, a *payoutAmounts) []any {
	return []any{
		&p.ID, &p.AffiliateID, &p.BatchID, &a.amount, &a.fee, &a.net,
		&p.PayoutMethod, &p.Status, &p.Reference, &p.ProviderDisbursementID,
		&p.ProcessingNotes, &p.FailureReason, &p.ScheduledAt, &p.ProcessedAt, &p.FailedAt,
		&p.CreatedAt, &p.UpdatedAt,
	}
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	var amounts payoutAmounts
	err := row.Scan(payoutScanTargets(&p, &amounts)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan payout: %w", err)
	}
	if err := amounts.apply(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayouts(rows pgx.Rows) ([]domain.Payout, error) {
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
