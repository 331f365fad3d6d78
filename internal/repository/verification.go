package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type verificationRepo struct{}

// NewVerificationRepository returns a pgx-backed VerificationRepository.
func NewVerificationRepository() VerificationRepository {
	return &verificationRepo{}
}

func (r *verificationRepo) Insert(ctx context.Context, db DBTX, v *domain.Verification) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO admin_verifications
		  (id, admin_user_id, target_entity_type, target_entity_id, verification_type, is_verified, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING verified_at`,
		v.ID, v.AdminUserID, v.TargetEntityType, v.TargetEntityID,
		v.VerificationType, v.IsVerified, v.Notes,
	).Scan(&v.VerifiedAt)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (r *verificationRepo) FindLatest(ctx context.Context, db DBTX, entityType string, entityID uuid.UUID) (*domain.Verification, error) {
	var v domain.Verification
	err := db.QueryRow(ctx, `
		SELECT id, admin_user_id, target_entity_type, target_entity_id,
		       verification_type, is_verified, notes, verified_at
		FROM admin_verifications
		WHERE target_entity_type = $1 AND target_entity_id = $2
		ORDER BY verified_at DESC
		LIMIT 1`, entityType, entityID,
	).Scan(&v.ID, &v.AdminUserID, &v.TargetEntityType, &v.TargetEntityID,
		&v.VerificationType, &v.IsVerified, &v.Notes, &v.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	return &v, nil
}
