package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type adminUserRepo struct{}

// NewAdminUserRepository returns a pgx-backed AdminUserRepository.
func NewAdminUserRepository() AdminUserRepository {
	return &adminUserRepo{}
}

func (r *adminUserRepo) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.AdminUser, error) {
	var u domain.AdminUser
	err := db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, role, active, created_at, updated_at
		FROM admin_users WHERE email = $1`, strings.ToLower(email),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan admin user: %w", err)
	}
	return &u, nil
}

func (r *adminUserRepo) Create(ctx context.Context, db DBTX, u *domain.AdminUser) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(u.Email)
	err := db.QueryRow(ctx, `
		INSERT INTO admin_users (id, email, password_hash, display_name, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Role, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if infra.IsUniqueViolation(err) {
		return domain.ErrConflict("admin email already registered")
	}
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}
