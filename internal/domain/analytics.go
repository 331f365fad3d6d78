package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ThresholdScenario is the payable pool under one candidate threshold.
type ThresholdScenario struct {
	Threshold          decimal.Decimal `json:"threshold"`
	EligibleAffiliates int             `json:"eligible_affiliates"`
	EligibleAmount     decimal.Decimal `json:"eligible_amount"`
	RolloverAmount     decimal.Decimal `json:"rollover_amount"`
	Description        string          `json:"impact_description"`
}

// ThresholdImpact compares the current payout threshold against alternatives.
type ThresholdImpact struct {
	CurrentThreshold decimal.Decimal     `json:"current_threshold"`
	Scenarios        []ThresholdScenario `json:"scenarios"`
}

// PaymentGap is an affiliate owed money whose payout details are incomplete
// or unverified.
type PaymentGap struct {
	AffiliateID   uuid.UUID       `json:"affiliate_id"`
	AffiliateName string          `json:"affiliate_name"`
	Email         string          `json:"affiliate_email"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	MonthsPending int             `json:"months_pending"`
}

// PaymentGapSummary totals the affiliates that appear in any gap list.
type PaymentGapSummary struct {
	AffiliatesWithGaps int             `json:"total_missing_details"`
	PendingAmount      decimal.Decimal `json:"total_pending_amount"`
	UrgentCases        int             `json:"urgent_cases"`
}

// PaymentMethodGaps lists affiliates that cannot be paid on one rail or the other.
type PaymentMethodGaps struct {
	MissingBank  []PaymentGap      `json:"missing_bank_details"`
	MissingGCash []PaymentGap      `json:"missing_gcash_details"`
	Unverified   []PaymentGap      `json:"unverified_affiliates"`
	Summary      PaymentGapSummary `json:"summary"`
}

// Growth trends and confidence levels of a rollover projection.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// RolloverProjection estimates when a below-threshold affiliate will be paid.
type RolloverProjection struct {
	AffiliateID        uuid.UUID       `json:"affiliate_id"`
	AffiliateName      string          `json:"affiliate_name"`
	Email              string          `json:"affiliate_email"`
	CurrentAmount      decimal.Decimal `json:"current_amount"`
	MonthlyGrowth      decimal.Decimal `json:"projected_monthly_growth"`
	MonthsToThreshold  int             `json:"estimated_months_to_threshold"`
	EstimatedPayoutDue string          `json:"estimated_payout_date"`
	Confidence         string          `json:"confidence_level"`
	Trend              string          `json:"growth_trend"`
}

// RolloverSummary aggregates the projections.
type RolloverSummary struct {
	Affiliates         int             `json:"total_affiliates_in_rollover"`
	RolloverAmount     decimal.Decimal `json:"total_rollover_amount"`
	AvgMonthsToPayout  decimal.Decimal `json:"avg_months_to_threshold"`
	NextMonthGraduates int             `json:"next_month_graduates"`
}

// RolloverReport is the projection of every affiliate below the threshold.
type RolloverReport struct {
	Threshold   decimal.Decimal      `json:"threshold"`
	Projections []RolloverProjection `json:"projections"`
	Summary     RolloverSummary      `json:"summary"`
}
