//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// AuthPOST performs an authenticated POST request.
func (env *TestEnv) AuthPOST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.POST(path, body, token)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("DELETE", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("DELETE %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// RawPOST performs a POST request with raw bytes and custom headers.
func (env *TestEnv) RawPOST(path string, body []byte, headers map[string]string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("POST", env.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		env.t.Fatalf("RawPOST %s: new request: %v", path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("RawPOST %s: %v", path, err)
	}
	return resp
}

// RegisterAdmin inserts an admin user directly into the DB and returns a JWT
// together with the admin's id.
func (env *TestEnv) RegisterAdmin(email, password, role string) (string, uuid.UUID) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminID := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		env.t.Fatalf("RegisterAdmin: hash: %v", err)
	}

	_, err = env.Pool.Exec(ctx, `
		INSERT INTO admin_users (id, email, password_hash, display_name, role)
		VALUES ($1, $2, $3, 'Test Admin', $4)`,
		adminID, email, string(hash), role)
	if err != nil {
		env.t.Fatalf("RegisterAdmin: insert: %v", err)
	}

	token, _, err := env.JWTMgr.GenerateToken(adminID, email, role)
	if err != nil {
		env.t.Fatalf("RegisterAdmin: token: %v", err)
	}
	return token, adminID
}

// SeedGCashAffiliate inserts an active affiliate with a GCash profile.
func (env *TestEnv) SeedGCashAffiliate(firstName, number string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO affiliates (id, first_name, last_name, email, status, payout_method,
			gcash_number, gcash_name, gcash_verified)
		VALUES ($1, $2, 'Tester', $3, 'active', 'gcash', $4, $2 || ' Tester', TRUE)`,
		id, firstName, fmt.Sprintf("%s.%s@example.com", firstName, id.String()[:8]), number)
	if err != nil {
		env.t.Fatalf("SeedGCashAffiliate: %v", err)
	}
	return id
}

// SeedConversion inserts a conversion for an affiliate and returns its id.
func (env *TestEnv) SeedConversion(affiliateID uuid.UUID, commission string, status string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	amount := decimal.RequireFromString(commission)
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO affiliate_conversions (id, affiliate_id, order_id, gmv, commission_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now() - interval '10 days')`,
		id, affiliateID, "order-"+id.String()[:8], amount.Mul(decimal.NewFromInt(10)).String(), amount.String(), status)
	if err != nil {
		env.t.Fatalf("SeedConversion: %v", err)
	}
	return id
}
