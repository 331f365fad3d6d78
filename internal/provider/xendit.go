package provider

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultXenditBaseURL = "https://api.xendit.co"

// XenditProvider wraps the Xendit Payouts v2 API.
type XenditProvider struct {
	apiKey        string
	baseURL       string
	callbackToken string
	logger        *slog.Logger
	client        *http.Client
}

// NewXenditProvider creates a Xendit provider. An empty baseURL uses the
// public API host.
func NewXenditProvider(apiKey, baseURL, callbackToken string, timeout time.Duration, logger *slog.Logger) *XenditProvider {
	if baseURL == "" {
		baseURL = defaultXenditBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &XenditProvider{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		callbackToken: callbackToken,
		logger:        logger,
		client:        &http.Client{Timeout: timeout},
	}
}

// PayoutRequest is one disbursement submitted to Xendit.
type PayoutRequest struct {
	ReferenceID       string
	ChannelCode       string
	AccountNumber     string
	AccountHolderName string
	Amount            decimal.Decimal
	Currency          string
	Description       string
}

// PayoutResponse is the payout object returned by Xendit.
type PayoutResponse struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	Status        string          `json:"status"`
	ChannelCode   string          `json:"channel_code"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureCode   string          `json:"failure_code,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Created       string          `json:"created,omitempty"`
	Updated       string          `json:"updated,omitempty"`
}

// ProviderError is a non-2xx answer from Xendit.
type ProviderError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("xendit error (status %d): %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("xendit error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CreatePayout submits a disbursement. The reference doubles as the
// idempotency key so a resubmission cannot pay twice.
func (x *XenditProvider) CreatePayout(ctx context.Context, r PayoutRequest) (*PayoutResponse, error) {
	if x.apiKey == "" {
		return nil, fmt.Errorf("xendit api key not configured")
	}

	body, err := json.Marshal(map[string]any{
		"reference_id": r.ReferenceID,
		"channel_code": r.ChannelCode,
		"channel_properties": map[string]string{
			"account_holder_name": r.AccountHolderName,
			"account_number":      r.AccountNumber,
		},
		"amount":      json.Number(r.Amount.StringFixed(2)),
		"currency":    r.Currency,
		"description": r.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/v2/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-key", r.ReferenceID)

	var out PayoutResponse
	if err := x.do(req, &out); err != nil {
		return nil, err
	}
	x.logger.Info("xendit payout created",
		"payout_id", out.ID, "reference_id", r.ReferenceID, "channel", r.ChannelCode, "status", out.Status)
	return &out, nil
}

// GetPayout fetches the current state of a disbursement.
func (x *XenditProvider) GetPayout(ctx context.Context, id string) (*PayoutResponse, error) {
	if x.apiKey == "" {
		return nil, fmt.Errorf("xendit api key not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/v2/payouts/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out PayoutResponse
	if err := x.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (x *XenditProvider) do(req *http.Request, out any) error {
	req.SetBasicAuth(x.apiKey, "")

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("xendit api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		perr := &ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var body struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(raw, &body) == nil && body.ErrorCode != "" {
			perr.ErrorCode = body.ErrorCode
			perr.Message = body.Message
		}
		return perr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode xendit response: %w", err)
	}
	return nil
}

// VerifyCallbackToken compares the x-callback-token header with the
// configured token. An unconfigured token rejects every callback.
func (x *XenditProvider) VerifyCallbackToken(token string) bool {
	if x.callbackToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(x.callbackToken), []byte(token)) == 1
}

// PayoutCallback is a normalized payout webhook.
type PayoutCallback struct {
	Event         string          `json:"event"`
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	ChannelCode   string          `json:"channel_code"`
	FailureCode   string          `json:"failure_code,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Reason returns the most descriptive failure text available.
func (c *PayoutCallback) Reason() string {
	switch {
	case c.FailureReason != "":
		return c.FailureReason
	case c.FailureCode != "":
		return c.FailureCode
	default:
		return "Unknown error"
	}
}

type callbackData struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	ExternalID    string          `json:"external_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	ChannelCode   string          `json:"channel_code"`
	FailureCode   string          `json:"failure_code"`
	FailureReason string          `json:"failure_reason"`
}

// ParseCallback accepts both the event envelope ({"event", "data"}) and the
// flat legacy disbursement body.
func ParseCallback(body []byte) (*PayoutCallback, error) {
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}

	raw := body
	if envelope.Event != "" && len(envelope.Data) > 0 {
		raw = envelope.Data
	}
	var d callbackData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode callback data: %w", err)
	}

	ref := d.ReferenceID
	if ref == "" {
		ref = d.ExternalID
	}
	if d.ID == "" && ref == "" {
		return nil, fmt.Errorf("callback carries no payout identifier")
	}
	return &PayoutCallback{
		Event:         envelope.Event,
		ID:            d.ID,
		ReferenceID:   ref,
		Status:        strings.ToUpper(d.Status),
		Amount:        d.Amount,
		ChannelCode:   d.ChannelCode,
		FailureCode:   d.FailureCode,
		FailureReason: d.FailureReason,
	}, nil
}

// NewReference returns a unique external reference: payout_<unix-ms>_<8 hex>.
func NewReference(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("payout_%d_%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}
