package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConversionStatus tracks a commission record through review and payout.
type ConversionStatus string

const (
	ConversionPending    ConversionStatus = "pending"
	ConversionCleared    ConversionStatus = "cleared"
	ConversionFlagged    ConversionStatus = "flagged"
	ConversionProcessing ConversionStatus = "processing"
	ConversionPaid       ConversionStatus = "paid"
)

// PayoutStatus tracks a single affiliate payout.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutCompleted || s == PayoutFailed
}

// BatchStatus tracks a payout batch. It only moves forward, except that a
// processing batch reverts to verified when dispatch cannot start.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchVerified   BatchStatus = "verified"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Conversion represents an affiliate_conversions row.
type Conversion struct {
	ID               uuid.UUID        `json:"id"`
	AffiliateID      uuid.UUID        `json:"affiliate_id"`
	OrderID          string           `json:"order_id"`
	GMV              decimal.Decimal  `json:"gmv"`
	CommissionAmount decimal.Decimal  `json:"commission_amount"`
	Status           ConversionStatus `json:"status"`
	PayoutID         *uuid.UUID       `json:"payout_id,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// PayoutBatch represents an affiliate_payout_batches row.
type PayoutBatch struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	PayoutMethod    PayoutMethod    `json:"payout_method"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	AffiliateCount  int             `json:"affiliate_count"`
	ConversionCount int             `json:"conversion_count"`
	Status          BatchStatus     `json:"status"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Payout represents an affiliate_payouts row. Amount equals the sum of its
// items and NetAmount equals Amount minus FeeAmount.
type Payout struct {
	ID                     uuid.UUID       `json:"id"`
	AffiliateID            uuid.UUID       `json:"affiliate_id"`
	BatchID                *uuid.UUID      `json:"batch_id,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	FeeAmount              decimal.Decimal `json:"fee_amount"`
	NetAmount              decimal.Decimal `json:"net_amount"`
	PayoutMethod           PayoutMethod    `json:"payout_method"`
	Status                 PayoutStatus    `json:"status"`
	Reference              *string         `json:"reference,omitempty"`
	ProviderDisbursementID *string         `json:"provider_disbursement_id,omitempty"`
	ProcessingNotes        *string         `json:"processing_notes,omitempty"`
	FailureReason          *string         `json:"failure_reason,omitempty"`
	ScheduledAt            *time.Time      `json:"scheduled_at,omitempty"`
	ProcessedAt            *time.Time      `json:"processed_at,omitempty"`
	FailedAt               *time.Time      `json:"failed_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// PayoutItem links one conversion to one payout. Immutable once written.
type PayoutItem struct {
	ID           uuid.UUID       `json:"id"`
	PayoutID     uuid.UUID       `json:"payout_id"`
	ConversionID uuid.UUID       `json:"conversion_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ClearedConversion is a payable conversion joined with its affiliate.
type ClearedConversion struct {
	Conversion
	Affiliate Affiliate `json:"affiliate"`
}

// PayoutWithAffiliate is a payout joined with the affiliate profile it pays.
type PayoutWithAffiliate struct {
	Payout
	Affiliate Affiliate `json:"affiliate"`
}

// EligibleConversion is a cleared conversion awaiting payout.
type EligibleConversion struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          string          `json:"order_id"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CreatedAt        time.Time       `json:"created_at"`
	DaysPending      int             `json:"days_pending"`
}

// EligibleAffiliate groups an affiliate's payable conversions.
type EligibleAffiliate struct {
	AffiliateID     uuid.UUID            `json:"affiliate_id"`
	AffiliateName   string               `json:"affiliate_name"`
	Email           string               `json:"email"`
	Affiliate       Affiliate            `json:"-"`
	Conversions     []EligibleConversion `json:"conversions"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	ConversionCount int                  `json:"conversion_count"`
}

// ConversionIDs returns the ids of the grouped conversions in order.
func (e EligibleAffiliate) ConversionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(e.Conversions))
	for i, c := range e.Conversions {
		ids[i] = c.ID
	}
	return ids
}

// PreviewRow is one priced affiliate line of a batch preview.
type PreviewRow struct {
	EligibleAffiliate
	PayoutMethod PayoutMethod    `json:"payout_method"`
	FeeAmount    decimal.Decimal `json:"fee_amount"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	Selected     bool            `json:"selected"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// PreviewTotals aggregates the rows of a preview.
type PreviewTotals struct {
	TotalAmount     decimal.Decimal `json:"total_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	AffiliateCount  int             `json:"affiliate_count"`
	ConversionCount int             `json:"conversion_count"`
}

// BatchPreview is the validated, priced input to batch creation.
type BatchPreview struct {
	PayoutMethod PayoutMethod  `json:"payout_method"`
	Rows         []PreviewRow  `json:"affiliates"`
	Totals       PreviewTotals `json:"totals"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// IneligibleAffiliate is an affiliate excluded from a monthly cycle.
type IneligibleAffiliate struct {
	EligibleAffiliate
	RejectionReasons []string `json:"rejection_reasons"`
}

// MonthlyPreview partitions affiliates for the upcoming payout cycle.
type MonthlyPreview struct {
	PayoutMethod   PayoutMethod          `json:"payout_method"`
	Eligible       []PreviewRow          `json:"eligible"`
	Ineligible     []IneligibleAffiliate `json:"ineligible"`
	Totals         PreviewTotals         `json:"totals"`
	RolloverAmount decimal.Decimal       `json:"rollover_amount"`
	NextPayoutDate time.Time             `json:"next_payout_date"`
}

// BatchSummary is returned after a batch has been created.
type BatchSummary struct {
	Batch   PayoutBatch `json:"batch"`
	Payouts []Payout    `json:"payouts"`
}

// DispatchSuccess records a payout accepted by the provider.
type DispatchSuccess struct {
	PayoutID       uuid.UUID `json:"payout_id"`
	DisbursementID string    `json:"disbursement_id"`
	Reference      string    `json:"reference"`
}

// DispatchErrorType groups dispatch failures by cause.
type DispatchErrorType string

const (
	ErrorTypeNetwork        DispatchErrorType = "NETWORK_ERROR"
	ErrorTypeTimeout        DispatchErrorType = "TIMEOUT_ERROR"
	ErrorTypeAPI            DispatchErrorType = "API_ERROR"
	ErrorTypeAuthentication DispatchErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeInsufficient   DispatchErrorType = "INSUFFICIENT_FUNDS"
	ErrorTypeBankDetails    DispatchErrorType = "INVALID_BANK_DETAILS"
	ErrorTypeRateLimit      DispatchErrorType = "RATE_LIMIT_EXCEEDED"
	ErrorTypeValidation     DispatchErrorType = "VALIDATION_ERROR"
	ErrorTypeDatabase       DispatchErrorType = "DATABASE_ERROR"
	ErrorTypeUnknown        DispatchErrorType = "UNKNOWN_ERROR"
)

// DispatchErrorSeverity ranks how urgently a failure needs an admin.
type DispatchErrorSeverity string

const (
	SeverityLow    DispatchErrorSeverity = "LOW"
	SeverityMedium DispatchErrorSeverity = "MEDIUM"
	SeverityHigh   DispatchErrorSeverity = "HIGH"
)

// DispatchErrorClass describes a failure for the admin deciding whether to retry.
type DispatchErrorClass struct {
	Type               DispatchErrorType     `json:"error_type"`
	Code               string                `json:"error_code,omitempty"`
	Severity           DispatchErrorSeverity `json:"severity"`
	Retryable          bool                  `json:"retryable"`
	ManualIntervention bool                  `json:"manual_intervention"`
	MaxAttempts        int                   `json:"max_attempts"`
}

// DispatchFailure records a payout that could not be submitted.
type DispatchFailure struct {
	PayoutID uuid.UUID `json:"payout_id"`
	Reason   string    `json:"reason"`
	DispatchErrorClass
}

// DispatchResult partitions the outcome of a dispatch call.
type DispatchResult struct {
	Successes []DispatchSuccess `json:"successes"`
	Failures  []DispatchFailure `json:"failures"`
}

// BatchProcessResult is the outcome of processing a verified batch.
type BatchProcessResult struct {
	BatchID uuid.UUID      `json:"batch_id"`
	Status  BatchStatus    `json:"status"`
	Result  DispatchResult `json:"result"`
}

// StatusChange records a reconciled payout transition.
type StatusChange struct {
	PayoutID  uuid.UUID    `json:"payout_id"`
	OldStatus PayoutStatus `json:"old_status"`
	NewStatus PayoutStatus `json:"new_status"`
}

// SyncError records a payout that could not be reconciled.
type SyncError struct {
	PayoutID uuid.UUID `json:"payout_id"`
	Error    string    `json:"error"`
}

// SyncResult is the outcome of a reconciliation pass.
type SyncResult struct {
	Updated []StatusChange `json:"updated"`
	Errors  []SyncError    `json:"errors"`
}

// PayoutFilter narrows payout history queries.
type PayoutFilter struct {
	Status       PayoutStatus `json:"status,omitempty"`
	AffiliateID  *uuid.UUID   `json:"affiliate_id,omitempty"`
	BatchID      *uuid.UUID   `json:"batch_id,omitempty"`
	PayoutMethod PayoutMethod `json:"payout_method,omitempty"`
	DateFrom     *time.Time   `json:"date_from,omitempty"`
	DateTo       *time.Time   `json:"date_to,omitempty"`
	Page         int          `json:"page"`
	PageSize     int          `json:"page_size"`
}

// Normalize clamps paging to sane bounds.
func (f *PayoutFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 200 {
		f.PageSize = 50
	}
}

// PayoutHistoryRow is a payout joined with affiliate contact details.
type PayoutHistoryRow struct {
	Payout
	AffiliateName  string `json:"affiliate_name"`
	AffiliateEmail string `json:"affiliate_email"`
}

// PayoutHistory is one page of payout history.
type PayoutHistory struct {
	Payouts     []PayoutHistoryRow `json:"payouts"`
	TotalCount  int                `json:"total_count"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
}

// StatusAggregate is a count and amount for one status.
type StatusAggregate struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PayoutStats summarizes payouts and batches by status.
type PayoutStats struct {
	Payouts map[PayoutStatus]StatusAggregate `json:"payouts"`
	Batches map[BatchStatus]StatusAggregate  `json:"batches"`
}
