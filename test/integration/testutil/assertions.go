//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// DecodeData decodes the {"data": ...} envelope into dst.
func DecodeData(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	DecodeJSON(t, resp, &env)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body carries the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Error.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Error.Code, errResp.Error.Message)
	}
}

// PayoutStatus reads a payout's status straight from the database.
func (env *TestEnv) PayoutStatus(id uuid.UUID) string {
	env.t.Helper()
	return env.scalarString("SELECT status FROM affiliate_payouts WHERE id = $1", id)
}

// BatchStatus reads a batch's status straight from the database.
func (env *TestEnv) BatchStatus(id uuid.UUID) string {
	env.t.Helper()
	return env.scalarString("SELECT status FROM affiliate_payout_batches WHERE id = $1", id)
}

// ConversionStatus reads a conversion's status straight from the database.
func (env *TestEnv) ConversionStatus(id uuid.UUID) string {
	env.t.Helper()
	return env.scalarString("SELECT status FROM affiliate_conversions WHERE id = $1", id)
}

// CountOutboxEvents returns the number of queued events of one type.
func (env *TestEnv) CountOutboxEvents(eventType string) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE event_type = $1`, eventType).Scan(&count)
	if err != nil {
		env.t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}

// CountActivity returns the number of audit rows of one type.
func (env *TestEnv) CountActivity(activityType string) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM admin_activity_log WHERE activity_type = $1`, activityType).Scan(&count)
	if err != nil {
		env.t.Fatalf("CountActivity: %v", err)
	}
	return count
}

func (env *TestEnv) scalarString(query string, id uuid.UUID) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var s string
	if err := env.Pool.QueryRow(ctx, query, id).Scan(&s); err != nil {
		env.t.Fatalf("query %q: %v", query, err)
	}
	return s
}
