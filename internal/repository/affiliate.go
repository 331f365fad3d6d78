package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// affiliateColumns must stay in the order scanned by affiliateScanTargets.
const affiliateColumns = `a.id, a.first_name, a.last_name, a.email, a.status, a.payout_method,
	a.gcash_number, a.gcash_name, a.gcash_verified,
	a.bank_code, a.bank_name, a.bank_account_number, a.bank_account_name, a.bank_account_verified,
	a.created_at, a.updated_at`

func affiliateScanTargets(a *domain.Affiliate) []any {
	return []any{
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Status, &a.PayoutMethod,
		&a.GCashNumber, &a.GCashName, &a.GCashVerified,
		&a.BankCode, &a.BankName, &a.BankAccountNumber, &a.BankAccountName, &a.BankAccountVerified,
		&a.CreatedAt, &a.UpdatedAt,
	}
}

type affiliateRepo struct{}

// NewAffiliateRepository returns a pgx-backed AffiliateRepository.
func NewAffiliateRepository() AffiliateRepository {
	return &affiliateRepo{}
}

func (r *affiliateRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Affiliate, error) {
	var a domain.Affiliate
	err := db.QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates a WHERE a.id = $1`, id).
		Scan(affiliateScanTargets(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan affiliate: %w", err)
	}
	return &a, nil
}
