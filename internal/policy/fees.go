package policy

import (
	"github.com/attaboy/payouts/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	bankTransferTierLimit = decimal.NewFromInt(50)
	bankTransferSmallRate = decimal.RequireFromString("0.035")
	bankTransferRate      = decimal.RequireFromString("0.025")
	defaultFeeRate        = decimal.RequireFromString("0.02")
)

// FeeBreakdown is the priced result for one payable amount.
type FeeBreakdown struct {
	Amount decimal.Decimal     `json:"amount"`
	Method domain.PayoutMethod `json:"payout_method"`
	Rate   decimal.Decimal     `json:"rate"`
	Fee    decimal.Decimal     `json:"fee"`
	Net    decimal.Decimal     `json:"net"`
}

// FeeRate returns the percentage applied to amount for method.
// Bank transfers under 50 pay 3.5%, larger ones 2.5%; every other method pays 2%.
func FeeRate(amount decimal.Decimal, method domain.PayoutMethod) decimal.Decimal {
	if method == domain.PayoutMethodBankTransfer {
		if amount.LessThan(bankTransferTierLimit) {
			return bankTransferSmallRate
		}
		return bankTransferRate
	}
	return defaultFeeRate
}

// CalculateFee prices amount for method. Fee and net are rounded half away
// from zero to two places.
func CalculateFee(amount decimal.Decimal, method domain.PayoutMethod) FeeBreakdown {
	rate := FeeRate(amount, method)
	fee := amount.Mul(rate).Round(2)
	return FeeBreakdown{
		Amount: amount,
		Method: method,
		Rate:   rate,
		Fee:    fee,
		Net:    amount.Sub(fee).Round(2),
	}
}
