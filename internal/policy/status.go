package policy

import (
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/domain"
)

// MapProviderStatus translates a polled provider status. ok is false when
// the status does not move the payout.
func MapProviderStatus(providerStatus string) (domain.PayoutStatus, bool) {
	switch strings.ToUpper(providerStatus) {
	case "SUCCEEDED":
		return domain.PayoutCompleted, true
	case "FAILED", "CANCELLED":
		return domain.PayoutFailed, true
	default:
		return "", false
	}
}

// MapCallbackStatus translates a webhook status, which also carries the
// legacy disbursement vocabulary.
func MapCallbackStatus(providerStatus string) (domain.PayoutStatus, bool) {
	switch strings.ToUpper(providerStatus) {
	case "SUCCEEDED", "COMPLETED":
		return domain.PayoutCompleted, true
	case "FAILED", "CANCELLED", "REVERSED":
		return domain.PayoutFailed, true
	case "PENDING", "PROCESSING", "ACCEPTED", "REQUESTED":
		return domain.PayoutProcessing, true
	default:
		return "", false
	}
}

// BatchOutcome returns the batch status after a dispatch pass.
func BatchOutcome(successes, failures int) domain.BatchStatus {
	switch {
	case failures == 0:
		return domain.BatchCompleted
	case successes == 0:
		return domain.BatchFailed
	default:
		return domain.BatchProcessing
	}
}

// SettleBatch decides whether a processing batch can be closed from the
// current statuses of its payouts. Pending payouts keep it open.
func SettleBatch(statuses []domain.PayoutStatus) (domain.BatchStatus, bool) {
	if len(statuses) == 0 {
		return "", false
	}
	var failed int
	for _, s := range statuses {
		switch s {
		case domain.PayoutPending:
			return "", false
		case domain.PayoutFailed:
			failed++
		}
	}
	status := BatchOutcome(len(statuses)-failed, failed)
	if status == domain.BatchProcessing {
		return "", false
	}
	return status, true
}

// NextPayoutDate returns the 5th of the month after now.
func NextPayoutDate(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 5, 0, 0, 0, 0, now.Location())
}

// DaysPending counts whole days between created and now.
func DaysPending(created, now time.Time) int {
	if now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}
