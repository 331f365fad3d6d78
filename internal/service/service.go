package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/attaboy/payouts/internal/cache"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/metrics"
	"github.com/attaboy/payouts/internal/provider"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the connection surface the services need. *pgxpool.Pool satisfies it.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PayoutProvider submits and tracks disbursements. *provider.XenditProvider satisfies it.
type PayoutProvider interface {
	CreatePayout(ctx context.Context, req provider.PayoutRequest) (*provider.PayoutResponse, error)
	GetPayout(ctx context.Context, id string) (*provider.PayoutResponse, error)
	VerifyCallbackToken(token string) bool
}

// providerKey names the disbursement provider in circuit breaker state.
const providerKey = "xendit"

// PayoutService runs eligibility, previews, and batch administration.
type PayoutService struct {
	db     DB
	repos  repository.Repositories
	cache  *cache.PayoutViewCache
	stats  *metrics.PayoutMetrics
	logger *slog.Logger
	now    func() time.Time
}

// NewPayoutService creates a PayoutService. cache and stats may be nil.
func NewPayoutService(
	db DB,
	repos repository.Repositories,
	viewCache *cache.PayoutViewCache,
	stats *metrics.PayoutMetrics,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		db:     db,
		repos:  repos,
		cache:  viewCache,
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

// programConfig reads the settings row once for the current operation.
func programConfig(ctx context.Context, db repository.DBTX, repo repository.ProgramConfigRepository) (domain.ProgramConfig, error) {
	cfg, err := repo.Get(ctx, db)
	if err != nil {
		return domain.ProgramConfig{}, domain.ErrConfiguration("could not load affiliate program settings", err)
	}
	if cfg == nil {
		return domain.DefaultProgramConfig(), nil
	}
	return *cfg, nil
}

// activity builds an audit entry with JSON details.
func activity(kind domain.ActivityType, adminID uuid.UUID, description string, target *uuid.UUID, details map[string]any) *domain.ActivityEntry {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte(`{}`)
	}
	e := &domain.ActivityEntry{
		ActivityType:   kind,
		Description:    description,
		TargetEntityID: target,
		Details:        raw,
	}
	if adminID != uuid.Nil {
		e.AdminUserID = &adminID
	}
	return e
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func strPtr(s string) *string { return &s }
