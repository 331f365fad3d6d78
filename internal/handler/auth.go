package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/service"
)

// AdminLogin is implemented by service.AdminAuthService.
type AdminLogin interface {
	Login(ctx context.Context, input service.LoginInput, ip string) (*service.LoginResult, error)
}

// AuthHandler handles the admin login endpoint.
type AuthHandler struct {
	authSvc AdminLogin
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc AdminLogin) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /admin/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !DecodeOrReject(w, r, &input) {
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondData(w, http.StatusOK, result)
}

type sessionInfo struct {
	AdminID   string    `json:"admin_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Me handles GET /admin/auth/me and echoes the caller's session claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		RespondError(w, domain.ErrUnauthorized("authentication required"))
		return
	}

	info := sessionInfo{AdminID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	RespondData(w, http.StatusOK, info)
}
