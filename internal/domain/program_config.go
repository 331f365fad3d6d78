package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ProgramConfig is the affiliate_program_config row, read once per operation
// and passed by value into validation.
type ProgramConfig struct {
	MinPayoutThreshold                 decimal.Decimal `json:"min_payout_threshold"`
	EnabledPayoutMethods               []PayoutMethod  `json:"enabled_payout_methods"`
	RequireVerificationForBankTransfer bool            `json:"require_verification_for_bank_transfer"`
	RequireVerificationForGCash        bool            `json:"require_verification_for_gcash"`
	UpdatedAt                          time.Time       `json:"updated_at"`
}

// DefaultProgramConfig returns the settings used when the row has no overrides.
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		MinPayoutThreshold:                 decimal.NewFromInt(2000),
		EnabledPayoutMethods:               []PayoutMethod{PayoutMethodGCash},
		RequireVerificationForBankTransfer: true,
		RequireVerificationForGCash:        false,
	}
}

// MethodEnabled reports whether method may be used for new batches.
func (c ProgramConfig) MethodEnabled(method PayoutMethod) bool {
	return slices.Contains(c.EnabledPayoutMethods, method)
}

// VerificationRequired reports whether method needs verified credentials.
func (c ProgramConfig) VerificationRequired(method PayoutMethod) bool {
	switch method {
	case PayoutMethodBankTransfer:
		return c.RequireVerificationForBankTransfer
	case PayoutMethodGCash:
		return c.RequireVerificationForGCash
	default:
		return false
	}
}
