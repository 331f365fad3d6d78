package policy

import (
	"testing"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDispatchError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		status    int
		message   string
		want      domain.DispatchErrorType
		severity  domain.DispatchErrorSeverity
		retryable bool
		manual    bool
	}{
		{"bad key", "INVALID_API_KEY", 401, "bad key", domain.ErrorTypeAuthentication, domain.SeverityHigh, false, true},
		{"no balance", "INSUFFICIENT_BALANCE", 400, "top up", domain.ErrorTypeInsufficient, domain.SeverityHigh, false, true},
		{"bad account", "ACCOUNT_NUMBER_NOT_FOUND", 400, "missing", domain.ErrorTypeBankDetails, domain.SeverityMedium, false, true},
		{"rate limited", "RATE_LIMIT_EXCEEDED", 429, "slow down", domain.ErrorTypeRateLimit, domain.SeverityLow, true, false},
		{"other provider code", "DUPLICATE_ERROR", 409, "dup", domain.ErrorTypeAPI, domain.SeverityMedium, true, false},
		{"status only 503", "", 503, "upstream", domain.ErrorTypeAPI, domain.SeverityMedium, true, false},
		{"status only 429", "", 429, "", domain.ErrorTypeRateLimit, domain.SeverityLow, true, false},
		{"timeout", "", 0, "dial tcp: i/o timeout", domain.ErrorTypeTimeout, domain.SeverityMedium, true, false},
		{"refused", "", 0, "connection refused", domain.ErrorTypeNetwork, domain.SeverityMedium, true, false},
		{"database", "", 0, "disbursement created but database update failed", domain.ErrorTypeDatabase, domain.SeverityMedium, true, false},
		{"profile", "", 0, "GCash invalid mobile number format", domain.ErrorTypeValidation, domain.SeverityMedium, false, true},
		{"unknown", "", 0, "dispatch cancelled", domain.ErrorTypeUnknown, domain.SeverityMedium, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDispatchError(tt.code, tt.status, tt.message)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.manual, got.ManualIntervention)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestClassifyDispatchError_MaxAttempts(t *testing.T) {
	assert.Equal(t, 10, ClassifyDispatchError("RATE_LIMIT_EXCEEDED", 429, "").MaxAttempts)
	assert.Equal(t, 5, ClassifyDispatchError("", 0, "connection reset by peer").MaxAttempts)
	assert.Equal(t, 1, ClassifyDispatchError("INSUFFICIENT_BALANCE", 400, "").MaxAttempts)
}
