package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
)

type activityRepo struct{}

// NewActivityRepository returns a pgx-backed ActivityRepository.
func NewActivityRepository() ActivityRepository {
	return &activityRepo{}
}

func (r *activityRepo) Insert(ctx context.Context, db DBTX, e *domain.ActivityEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if len(e.Details) == 0 {
		e.Details = json.RawMessage(`{}`)
	}
	err := db.QueryRow(ctx, `
		INSERT INTO admin_activity_log
		  (id, admin_user_id, activity_type, description, target_user_id, target_entity_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID, e.AdminUserID, string(e.ActivityType), e.Description,
		e.TargetUserID, e.TargetEntityID, e.Details,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *activityRepo) ListByTarget(ctx context.Context, db DBTX, targetID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, `
		SELECT id, admin_user_id, activity_type, description, target_user_id,
		       target_entity_id, details, created_at
		FROM admin_activity_log
		WHERE target_entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.AdminUserID, &e.ActivityType, &e.Description,
			&e.TargetUserID, &e.TargetEntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
