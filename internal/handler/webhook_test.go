package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/guard"
	"github.com/attaboy/payouts/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCallbacks struct {
	body  []byte
	token string
	res   *service.CallbackResult
	err   error
}

func (f *fakeCallbacks) HandleCallback(_ context.Context, body []byte, token string) (*service.CallbackResult, error) {
	f.body, f.token = body, token
	return f.res, f.err
}

func TestHandleXenditPayout(t *testing.T) {
	t.Run("passes raw body and token through", func(t *testing.T) {
		fake := &fakeCallbacks{res: &service.CallbackResult{Received: true}}
		h := NewWebhookHandler(fake, noopLogger())

		payload := `{"event":"payout.succeeded","data":{"id":"disb_1","status":"SUCCEEDED"}}`
		r := httptest.NewRequest(http.MethodPost, "/webhooks/xendit/payouts", bytes.NewBufferString(payload))
		r.Header.Set("x-callback-token", "cb-token")
		w := httptest.NewRecorder()
		h.HandleXenditPayout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, payload, string(fake.body))
		assert.Equal(t, "cb-token", fake.token)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, true, body["received"])
	})

	t.Run("bad token is 401", func(t *testing.T) {
		fake := &fakeCallbacks{err: domain.ErrUnauthorized("invalid callback token")}
		h := NewWebhookHandler(fake, noopLogger())

		r := httptest.NewRequest(http.MethodPost, "/webhooks/xendit/payouts", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()
		h.HandleXenditPayout(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Error.Code)
	})
}

type fakeLogin struct {
	input service.LoginInput
	ip    string
	err   error
}

func (f *fakeLogin) Login(_ context.Context, input service.LoginInput, ip string) (*service.LoginResult, error) {
	f.input, f.ip = input, ip
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{Token: "tok", Email: input.Email, Role: auth.RoleFinance}, nil
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success returns token in data", func(t *testing.T) {
		fake := &fakeLogin{}
		h := NewAuthHandler(fake)

		r := httptest.NewRequest(http.MethodPost, "/admin/auth/login",
			bytes.NewBufferString(`{"email":"ops@example.com","password":"correct horse battery"}`))
		r.RemoteAddr = "10.1.2.3:5555"
		w := httptest.NewRecorder()
		h.Login(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data service.LoginResult `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "tok", body.Data.Token)
		assert.Equal(t, "10.1.2.3", fake.ip)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		h := NewAuthHandler(&fakeLogin{})
		r := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewBufferString(`nope`))
		w := httptest.NewRecorder()
		h.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
	})

	t.Run("locked account is 429", func(t *testing.T) {
		h := NewAuthHandler(&fakeLogin{err: domain.ErrAccountLocked("too many failed attempts")})
		r := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewBufferString(`{"email":"a@b.c","password":"x"}`))
		w := httptest.NewRecorder()
		h.Login(w, r)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&fakeLogin{})

	t.Run("echoes claims", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		claims := &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "8e0f3c8a-4a9b-4cf1-9a51-2f0c1b7d8e11", ExpiresAt: jwt.NewNumericDate(exp)},
			Email:            "ops@example.com",
			Role:             auth.RoleFinance,
		}
		r := httptest.NewRequest(http.MethodGet, "/admin/auth/me", nil)
		r = r.WithContext(auth.WithClaims(r.Context(), claims))
		w := httptest.NewRecorder()
		h.Me(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data sessionInfo `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ops@example.com", body.Data.Email)
		assert.Equal(t, auth.RoleFinance, body.Data.Role)
		assert.True(t, exp.Equal(body.Data.ExpiresAt))
	})

	t.Run("missing claims is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/admin/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	limiter := guard.NewRateLimiter(2, time.Minute)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(subject string) int {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}, Role: auth.RoleFinance}
		r = r.WithContext(auth.WithClaims(r.Context(), claims))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	alice, bob := uuid.NewString(), uuid.NewString()
	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusOK, send(bob), "limits are per admin")
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
