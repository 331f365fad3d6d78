package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/repository"
)

const (
	DefaultMaxAttempts   = 5
	DefaultLockoutWindow = 15 * time.Minute
)

// LoginLockout blocks an admin email after too many failed logins inside a
// rolling window, using the login_attempts table.
type LoginLockout struct {
	db          repository.DBTX
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewLoginLockout creates a lockout guard with the default limits.
func NewLoginLockout(db repository.DBTX, logger *slog.Logger) *LoginLockout {
	return &LoginLockout{
		db:          db,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultLockoutWindow,
		logger:      logger,
	}
}

// Record stores one login attempt. Failures to record are logged only.
func (l *LoginLockout) Record(ctx context.Context, email, ip string, success bool) {
	_, err := l.db.Exec(ctx, `
		INSERT INTO login_attempts (email, ip_address, success)
		VALUES ($1, $2, $3)`,
		strings.ToLower(email), ip, success)
	if err != nil {
		l.logger.Warn("record login attempt failed", "error", err)
	}
}

// Check counts recent failures for email. A database error fails open.
func (l *LoginLockout) Check(ctx context.Context, email string) domain.GuardResult {
	var count int
	err := l.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false AND created_at > $2`,
		strings.ToLower(email), time.Now().Add(-l.window)).Scan(&count)
	if err != nil {
		l.logger.Warn("login lockout check failed", "error", err)
		return domain.GuardResult{Allowed: true}
	}
	if count >= l.maxAttempts {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("too many failed login attempts, try again in %s", l.window),
			Guard:   "lockout",
		}
	}
	return domain.GuardResult{Allowed: true}
}
