package policy

import (
	"fmt"
	"strings"

	"github.com/attaboy/payouts/internal/domain"
)

// GCashChannelCode is the provider channel for the mobile wallet rail.
const GCashChannelCode = "PH_GCASH"

// ProfileEvaluation holds the result of checking an affiliate's payout details.
// Errors block payout; warnings are informational.
type ProfileEvaluation struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Passed returns true if no blocking issue was found.
func (e ProfileEvaluation) Passed() bool {
	return len(e.Errors) == 0
}

// ValidatePayoutProfile checks that a has complete, well-formed credentials
// for method and, when cfg requires it, that they are verified.
func ValidatePayoutProfile(cfg domain.ProgramConfig, a domain.Affiliate, method domain.PayoutMethod) ProfileEvaluation {
	var eval ProfileEvaluation

	switch method {
	case domain.PayoutMethodGCash:
		if err := domain.ValidateMobileNumber(strings.TrimSpace(a.GCashNumber)); err != nil {
			eval.Errors = append(eval.Errors, "GCash "+err.Error())
		}
		if strings.TrimSpace(a.GCashName) == "" {
			eval.Errors = append(eval.Errors, "GCash account name is required")
		}
	case domain.PayoutMethodBankTransfer:
		if code := strings.TrimSpace(a.BankCode); code == "" {
			eval.Errors = append(eval.Errors, "bank code is required")
		} else if err := domain.ValidateBankChannel(code); err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("bank code %q is not a provider channel code; dispatch will fail", code))
		}
		if strings.TrimSpace(a.BankAccountNumber) == "" {
			eval.Errors = append(eval.Errors, "bank account number is required")
		}
		if strings.TrimSpace(a.BankAccountName) == "" {
			eval.Errors = append(eval.Errors, "bank account holder name is required")
		}
	default:
		eval.Errors = append(eval.Errors, fmt.Sprintf("unsupported payout method: %s", method))
		return eval
	}

	if !a.VerifiedFor(method) {
		if cfg.VerificationRequired(method) {
			eval.Errors = append(eval.Errors, fmt.Sprintf("%s details are not verified", method))
		} else {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("%s details are not verified", method))
		}
	}

	return eval
}

// EvaluateAffiliate applies the payout threshold and profile checks to one
// eligible group.
func EvaluateAffiliate(cfg domain.ProgramConfig, group domain.EligibleAffiliate, method domain.PayoutMethod) ProfileEvaluation {
	eval := ValidatePayoutProfile(cfg, group.Affiliate, method)
	if group.TotalAmount.LessThan(cfg.MinPayoutThreshold) {
		eval.Errors = append([]string{fmt.Sprintf("amount %s is below the minimum payout threshold %s",
			group.TotalAmount.StringFixed(2), cfg.MinPayoutThreshold.StringFixed(2))}, eval.Errors...)
	}
	return eval
}

// Channel is the provider destination for a disbursement.
type Channel struct {
	Code              string `json:"channel_code"`
	AccountNumber     string `json:"account_number"`
	AccountHolderName string `json:"account_holder_name"`
}

// ResolveChannel selects the provider channel and account fields for method.
func ResolveChannel(a domain.Affiliate, method domain.PayoutMethod) (Channel, error) {
	switch method {
	case domain.PayoutMethodGCash:
		if err := domain.ValidateMobileNumber(strings.TrimSpace(a.GCashNumber)); err != nil {
			return Channel{}, fmt.Errorf("gcash: %w", err)
		}
		if strings.TrimSpace(a.GCashName) == "" {
			return Channel{}, fmt.Errorf("gcash: account name is required")
		}
		return Channel{
			Code:              GCashChannelCode,
			AccountNumber:     strings.TrimSpace(a.GCashNumber),
			AccountHolderName: strings.TrimSpace(a.GCashName),
		}, nil
	case domain.PayoutMethodBankTransfer:
		if err := domain.ValidateBankChannel(strings.TrimSpace(a.BankCode)); err != nil {
			return Channel{}, fmt.Errorf("bank: %w", err)
		}
		if strings.TrimSpace(a.BankAccountNumber) == "" || strings.TrimSpace(a.BankAccountName) == "" {
			return Channel{}, fmt.Errorf("bank: account number and holder name are required")
		}
		return Channel{
			Code:              strings.TrimSpace(a.BankCode),
			AccountNumber:     strings.TrimSpace(a.BankAccountNumber),
			AccountHolderName: strings.TrimSpace(a.BankAccountName),
		}, nil
	default:
		return Channel{}, fmt.Errorf("unsupported payout method: %s", method)
	}
}
