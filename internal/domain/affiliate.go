package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayoutMethod enumerates the supported disbursement rails.
type PayoutMethod string

const (
	PayoutMethodGCash        PayoutMethod = "gcash"
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
)

// Valid reports whether m is a known payout method.
func (m PayoutMethod) Valid() bool {
	return m == PayoutMethodGCash || m == PayoutMethodBankTransfer
}

// Affiliate represents an affiliates row with its payout profile.
type Affiliate struct {
	ID                  uuid.UUID    `json:"id"`
	FirstName           string       `json:"first_name"`
	LastName            string       `json:"last_name"`
	Email               string       `json:"email"`
	Status              string       `json:"status"` // active, suspended, pending
	PayoutMethod        PayoutMethod `json:"payout_method"`
	GCashNumber         string       `json:"gcash_number,omitempty"`
	GCashName           string       `json:"gcash_name,omitempty"`
	GCashVerified       bool         `json:"gcash_verified"`
	BankCode            string       `json:"bank_code,omitempty"`
	BankName            string       `json:"bank_name,omitempty"`
	BankAccountNumber   string       `json:"bank_account_number,omitempty"`
	BankAccountName     string       `json:"bank_account_name,omitempty"`
	BankAccountVerified bool         `json:"bank_account_verified"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// DisplayName returns "first last", or "Unknown" when both are empty.
func (a Affiliate) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return "Unknown"
	}
	return name
}

// VerifiedFor reports whether the credentials for method have been verified.
func (a Affiliate) VerifiedFor(method PayoutMethod) bool {
	switch method {
	case PayoutMethodGCash:
		return a.GCashVerified
	case PayoutMethodBankTransfer:
		return a.BankAccountVerified
	default:
		return false
	}
}
