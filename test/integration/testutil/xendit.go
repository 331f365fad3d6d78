//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// FakeXendit is an in-memory stand-in for the Xendit Payouts v2 API.
type FakeXendit struct {
	server *httptest.Server

	mu       sync.Mutex
	payouts  map[string]map[string]any
	rejected map[string]bool // account numbers answered with 400
	requests int
}

// NewFakeXendit starts the fake API and closes it with the test.
func NewFakeXendit(t *testing.T) *FakeXendit {
	f := &FakeXendit{
		payouts:  make(map[string]map[string]any),
		rejected: make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, _, ok := r.BasicAuth(); !ok || user != TestXenditAPIKey {
				writeXendit(w, http.StatusUnauthorized, map[string]any{"error_code": "INVALID_API_KEY", "message": "bad key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/v2/payouts", f.create)
	r.Get("/v2/payouts/{id}", f.get)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL to configure the provider with.
func (f *FakeXendit) URL() string { return f.server.URL }

// Reject makes every payout to accountNumber fail with a 400.
func (f *FakeXendit) Reject(accountNumber string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[accountNumber] = true
}

// Accept lifts a rejection set by Reject.
func (f *FakeXendit) Accept(accountNumber string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rejected, accountNumber)
}

// SetStatus changes the status reported for a disbursement.
func (f *FakeXendit) SetStatus(id, status, failureCode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payouts[id]; ok {
		p["status"] = status
		if failureCode != "" {
			p["failure_code"] = failureCode
		}
	}
}

// Requests returns how many create calls were received.
func (f *FakeXendit) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *FakeXendit) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReferenceID       string            `json:"reference_id"`
		ChannelCode       string            `json:"channel_code"`
		ChannelProperties map[string]string `json:"channel_properties"`
		Amount            decimal.Decimal   `json:"amount"`
		Currency          string            `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeXendit(w, http.StatusBadRequest, map[string]any{"error_code": "API_VALIDATION_ERROR", "message": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	if f.rejected[body.ChannelProperties["account_number"]] {
		writeXendit(w, http.StatusBadRequest, map[string]any{"error_code": "INVALID_DESTINATION", "message": "destination account is invalid"})
		return
	}

	id := "disb_" + body.ReferenceID
	if existing, ok := f.payouts[id]; ok {
		writeXendit(w, http.StatusOK, existing)
		return
	}
	p := map[string]any{
		"id":           id,
		"reference_id": body.ReferenceID,
		"channel_code": body.ChannelCode,
		"amount":       body.Amount,
		"currency":     body.Currency,
		"status":       "ACCEPTED",
	}
	f.payouts[id] = p
	writeXendit(w, http.StatusOK, p)
}

func (f *FakeXendit) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[chi.URLParam(r, "id")]
	if !ok {
		writeXendit(w, http.StatusNotFound, map[string]any{"error_code": "DATA_NOT_FOUND", "message": "payout not found"})
		return
	}
	writeXendit(w, http.StatusOK, p)
}

func writeXendit(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
