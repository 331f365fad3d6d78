package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex    = regexp.MustCompile(`^[A-Z]{3}$`)
	mobileRegex      = regexp.MustCompile(`^09\d{9}$`)
	bankChannelRegex = regexp.MustCompile(`^[A-Z]{2}_[A-Z0-9_]+$`)
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateCurrency checks if a currency code is ISO 4217.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is greater than zero.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount.StringFixed(2))
	}
	return nil
}

// ValidateMobileNumber checks a local 11-digit mobile wallet number (09XXXXXXXXX).
func ValidateMobileNumber(number string) error {
	if number == "" {
		return fmt.Errorf("mobile number is required")
	}
	if !mobileRegex.MatchString(number) {
		return fmt.Errorf("invalid mobile number format")
	}
	return nil
}

// ValidateBankChannel checks a provider bank channel code such as PH_BDO.
func ValidateBankChannel(code string) error {
	if code == "" {
		return fmt.Errorf("bank code is required")
	}
	if !bankChannelRegex.MatchString(code) {
		return fmt.Errorf("invalid bank code format: %s", code)
	}
	return nil
}

// ValidatePayoutMethod checks a method string against the known rails.
func ValidatePayoutMethod(method string) error {
	if method == "" {
		return fmt.Errorf("payout method is required")
	}
	if !PayoutMethod(method).Valid() {
		return fmt.Errorf("unsupported payout method: %s", method)
	}
	return nil
}

// ValidateBatchName checks an optional admin-supplied batch name.
func ValidateBatchName(name string) error {
	if len(strings.TrimSpace(name)) > 120 {
		return fmt.Errorf("batch name must be at most 120 characters")
	}
	return nil
}
