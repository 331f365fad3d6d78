package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type programConfigRepo struct{}

// NewProgramConfigRepository returns a pgx-backed ProgramConfigRepository.
func NewProgramConfigRepository() ProgramConfigRepository {
	return &programConfigRepo{}
}

func (r *programConfigRepo) Get(ctx context.Context, db DBTX) (*domain.ProgramConfig, error) {
	cfg := domain.DefaultProgramConfig()

	var threshold pgtype.Numeric
	var methods []string
	err := db.QueryRow(ctx, `
		SELECT min_payout_threshold, enabled_payout_methods,
		       require_verification_for_bank_transfer, require_verification_for_gcash, updated_at
		FROM affiliate_program_config
		WHERE id = 1`).Scan(&threshold, &methods,
		&cfg.RequireVerificationForBankTransfer, &cfg.RequireVerificationForGCash, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan program config: %w", err)
	}

	if threshold.Valid {
		if cfg.MinPayoutThreshold, err = infra.NumericToDecimal(threshold); err != nil {
			return nil, fmt.Errorf("convert payout threshold: %w", err)
		}
	}
	if len(methods) > 0 {
		cfg.EnabledPayoutMethods = cfg.EnabledPayoutMethods[:0]
		for _, m := range methods {
			if pm := domain.PayoutMethod(m); pm.Valid() {
				cfg.EnabledPayoutMethods = append(cfg.EnabledPayoutMethods, pm)
			}
		}
	}
	return &cfg, nil
}
