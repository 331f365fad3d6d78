package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
		errMsg  string
	}{
		{"valid email", "user@example.com", false, ""},
		{"valid email with dots", "first.last@example.co.uk", false, ""},
		{"valid email with plus", "user+tag@example.com", false, ""},
		{"empty string", "", true, "email is required"},
		{"no at sign", "userexample.com", true, "invalid email format"},
		{"no domain", "user@", true, "invalid email format"},
		{"no tld", "user@example", true, "invalid email format"},
		{"spaces", "user @example.com", true, "invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		wantErr  bool
	}{
		{"valid PHP", "PHP", false},
		{"valid USD", "USD", false},
		{"lowercase", "php", true},
		{"too short", "PH", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(decimal.RequireFromString("0.01")))
	assert.Error(t, ValidatePositiveAmount(decimal.Zero))
	err := ValidatePositiveAmount(decimal.RequireFromString("-5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-5.00")
}

func TestValidateMobileNumber(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		wantErr bool
		errMsg  string
	}{
		{"valid", "09171234567", false, ""},
		{"empty", "", true, "required"},
		{"ten digits", "0917123456", true, "invalid mobile number format"},
		{"twelve digits", "091712345678", true, "invalid mobile number format"},
		{"international prefix", "+639171234567", true, "invalid mobile number format"},
		{"wrong prefix", "08171234567", true, "invalid mobile number format"},
		{"letters", "0917abc4567", true, "invalid mobile number format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMobileNumber(tt.number)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateBankChannel(t *testing.T) {
	assert.NoError(t, ValidateBankChannel("PH_BDO"))
	assert.NoError(t, ValidateBankChannel("PH_UNIONBANK"))
	assert.Error(t, ValidateBankChannel(""))
	assert.Error(t, ValidateBankChannel("bdo"))
}

func TestValidatePayoutMethod(t *testing.T) {
	assert.NoError(t, ValidatePayoutMethod("gcash"))
	assert.NoError(t, ValidatePayoutMethod("bank_transfer"))
	assert.Error(t, ValidatePayoutMethod(""))
	assert.Error(t, ValidatePayoutMethod("paypal"))
}

func TestMaskAccountNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09171234567", "09****4567"},
		{"1234567890123", "12****0123"},
		{"123456", "****"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskAccountNumber(tt.in))
		})
	}
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrNotFound("batch", "abc-123")
		assert.Equal(t, "NOT_FOUND: batch abc-123 not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("database error", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorFactories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrNotFound", ErrNotFound("payout", "123"), "NOT_FOUND", 404},
		{"ErrConflict", ErrConflict("already claimed"), "CONFLICT", 409},
		{"ErrValidation", ErrValidation("bad input"), "VALIDATION_ERROR", 400},
		{"ErrUnauthorized", ErrUnauthorized("no token"), "UNAUTHORIZED", 401},
		{"ErrForbidden", ErrForbidden("not allowed"), "FORBIDDEN", 403},
		{"ErrAccountLocked", ErrAccountLocked("too many attempts"), "ACCOUNT_LOCKED", 429},
		{"ErrRateLimited", ErrRateLimited("slow down"), "RATE_LIMITED", 429},
		{"ErrInvalidState", ErrInvalidState("batch", "1", "verified", "pending"), "INVALID_STATE", 409},
		{"ErrConfiguration", ErrConfiguration("config missing", nil), "CONFIGURATION_ERROR", 500},
		{"ErrPreviewRejected", ErrPreviewRejected("1 failed"), "PREVIEW_REJECTED", 422},
		{"ErrInternal", ErrInternal("oops", nil), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestErrInvalidState_Message(t *testing.T) {
	err := ErrInvalidState("batch", "b-1", "verified", "pending")
	assert.Equal(t, "batch b-1 is verified, must be pending", err.Message)
}

// --- Model Tests ---

func TestAffiliate_DisplayName(t *testing.T) {
	assert.Equal(t, "Ana Cruz", Affiliate{FirstName: "Ana", LastName: "Cruz"}.DisplayName())
	assert.Equal(t, "Ana", Affiliate{FirstName: "Ana"}.DisplayName())
	assert.Equal(t, "Unknown", Affiliate{}.DisplayName())
}

func TestAffiliate_VerifiedFor(t *testing.T) {
	a := Affiliate{GCashVerified: true}
	assert.True(t, a.VerifiedFor(PayoutMethodGCash))
	assert.False(t, a.VerifiedFor(PayoutMethodBankTransfer))
	assert.False(t, a.VerifiedFor(PayoutMethod("paypal")))
}

func TestProgramConfig(t *testing.T) {
	cfg := DefaultProgramConfig()
	assert.True(t, cfg.MinPayoutThreshold.Equal(decimal.NewFromInt(2000)))
	assert.True(t, cfg.MethodEnabled(PayoutMethodGCash))
	assert.False(t, cfg.MethodEnabled(PayoutMethodBankTransfer))
	assert.True(t, cfg.VerificationRequired(PayoutMethodBankTransfer))
	assert.False(t, cfg.VerificationRequired(PayoutMethodGCash))
}

func TestPayoutStatus_Terminal(t *testing.T) {
	assert.False(t, PayoutPending.Terminal())
	assert.False(t, PayoutProcessing.Terminal())
	assert.True(t, PayoutCompleted.Terminal())
	assert.True(t, PayoutFailed.Terminal())
}

func TestPayoutFilter_Normalize(t *testing.T) {
	f := PayoutFilter{Page: 0, PageSize: 1000}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.PageSize)

	f = PayoutFilter{Page: 3, PageSize: 25}
	f.Normalize()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 25, f.PageSize)
}

func TestEligibleAffiliate_ConversionIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	group := EligibleAffiliate{Conversions: []EligibleConversion{{ID: a}, {ID: b}}}
	assert.Equal(t, []uuid.UUID{a, b}, group.ConversionIDs())
}

// --- Event Tests ---

func TestNewBatchCreatedEvent(t *testing.T) {
	batch := &PayoutBatch{
		ID:          uuid.New(),
		Name:        "Payout Batch 2026-10-16",
		TotalAmount: decimal.RequireFromString("50"),
		Status:      BatchPending,
	}

	event := NewBatchCreatedEvent(batch)

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, AggregateBatch, event.AggregateType)
	assert.Equal(t, batch.ID.String(), event.AggregateID)
	assert.Equal(t, EventBatchCreated, event.EventType)
	assert.Equal(t, batch.ID.String(), event.PartitionKey)
	assert.False(t, event.OccurredAt.IsZero())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "Payout Batch 2026-10-16", payload["name"])
	assert.Equal(t, "pending", payload["status"])
}

func TestNewPayoutDispatchedEvent(t *testing.T) {
	p := &Payout{ID: uuid.New(), AffiliateID: uuid.New(), NetAmount: decimal.RequireFromString("48.75")}

	event := NewPayoutDispatchedEvent(p, "disb-1", "payout_1_ab")

	assert.Equal(t, AggregatePayout, event.AggregateType)
	assert.Equal(t, p.ID.String(), event.AggregateID)
	assert.Equal(t, p.AffiliateID.String(), event.PartitionKey)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "disb-1", payload["disbursement_id"])
	assert.Equal(t, "48.75", payload["net_amount"])
}

func TestNewPayoutStatusChangedEvent(t *testing.T) {
	affiliateID := uuid.New()
	change := StatusChange{PayoutID: uuid.New(), OldStatus: PayoutProcessing, NewStatus: PayoutFailed}

	event := NewPayoutStatusChangedEvent(affiliateID, change, "INSUFFICIENT_BALANCE")

	assert.Equal(t, EventPayoutStatusChanged, event.EventType)
	assert.Equal(t, affiliateID.String(), event.PartitionKey)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "processing", payload["old_status"])
	assert.Equal(t, "failed", payload["new_status"])
	assert.Equal(t, "INSUFFICIENT_BALANCE", payload["reason"])
}
