package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LoginGuard tracks admin login attempts. *guard.LoginLockout satisfies it.
type LoginGuard interface {
	Check(ctx context.Context, email string) domain.GuardResult
	Record(ctx context.Context, email, ip string, success bool)
}

// AdminAuthService handles admin login.
type AdminAuthService struct {
	db       repository.DBTX
	users    repository.AdminUserRepository
	activity repository.ActivityRepository
	lockout  LoginGuard
	jwtMgr   *auth.JWTManager
	logger   *slog.Logger
}

// NewAdminAuthService creates a new AdminAuthService.
func NewAdminAuthService(
	db repository.DBTX,
	users repository.AdminUserRepository,
	activity repository.ActivityRepository,
	lockout LoginGuard,
	jwtMgr *auth.JWTManager,
	logger *slog.Logger,
) *AdminAuthService {
	return &AdminAuthService{
		db:       db,
		users:    users,
		activity: activity,
		lockout:  lockout,
		jwtMgr:   jwtMgr,
		logger:   logger,
	}
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful admin login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AdminID   uuid.UUID `json:"admin_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// Login authenticates an admin and returns a JWT. Every attempt counts
// towards the lockout window.
func (s *AdminAuthService) Login(ctx context.Context, input LoginInput, ip string) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, domain.ErrValidation("email and password are required")
	}

	if res := s.lockout.Check(ctx, email); !res.Allowed {
		return nil, domain.ErrAccountLocked(res.Reason)
	}

	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, domain.ErrInternal("find admin", err)
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		s.lockout.Record(ctx, email, ip, false)
		return nil, domain.ErrUnauthorized("invalid email or password")
	}
	s.lockout.Record(ctx, email, ip, true)

	token, expiresAt, err := s.jwtMgr.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	entry := activity(domain.ActivityAdminLogin, user.ID, "Admin signed in", nil, map[string]any{"ip": ip})
	if err := s.activity.Insert(ctx, s.db, entry); err != nil {
		s.logger.Warn("failed to log admin login", "admin_id", user.ID, "error", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		AdminID:   user.ID,
		Email:     user.Email,
		Role:      user.Role,
	}, nil
}

// CreateAdmin registers an admin account with a bcrypt password hash.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, displayName, role string) (*domain.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := domain.ValidateEmail(email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(password) < 12 {
		return nil, domain.ErrValidation("password must be at least 12 characters")
	}
	if !auth.ValidRole(role) {
		return nil, domain.ErrValidation("unknown admin role: " + role)
	}

	existing, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, domain.ErrInternal("find admin", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("admin email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}
	user := &domain.AdminUser{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, s.db, user); err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, domain.ErrInternal("create admin", err)
	}
	return user, nil
}
