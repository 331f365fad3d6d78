package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/shopspring/decimal"
)

// ScenarioThresholds are the alternatives compared with the configured threshold.
var ScenarioThresholds = []int64{500, 1000, 1500, 2000, 2500, 3000, 5000}

// Rollover projection bounds, in months and pesos per month.
const (
	defaultMonthsToThreshold = 12
	maxMonthsToThreshold     = 24
	growthBand               = 50
	urgentMonths             = 3
)

// ThresholdImpact partitions per-affiliate totals under every scenario
// threshold plus current, in ascending order.
func ThresholdImpact(current decimal.Decimal, totals []decimal.Decimal) domain.ThresholdImpact {
	thresholds := make([]decimal.Decimal, 0, len(ScenarioThresholds)+1)
	hasCurrent := false
	for _, t := range ScenarioThresholds {
		d := decimal.NewFromInt(t)
		hasCurrent = hasCurrent || d.Equal(current)
		thresholds = append(thresholds, d)
	}
	if !hasCurrent {
		thresholds = append(thresholds, current)
	}
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i].LessThan(thresholds[j]) })

	out := domain.ThresholdImpact{CurrentThreshold: current, Scenarios: make([]domain.ThresholdScenario, 0, len(thresholds))}
	for _, t := range thresholds {
		s := domain.ThresholdScenario{Threshold: t, EligibleAmount: decimal.Zero, RolloverAmount: decimal.Zero}
		var between int
		for _, amount := range totals {
			if amount.GreaterThanOrEqual(t) {
				s.EligibleAffiliates++
				s.EligibleAmount = s.EligibleAmount.Add(amount)
			} else {
				s.RolloverAmount = s.RolloverAmount.Add(amount)
			}
			if inRange(amount, t, current) {
				between++
			}
		}
		switch t.Cmp(current) {
		case -1:
			s.Description = fmt.Sprintf("%d more affiliates would be eligible", between)
		case 1:
			s.Description = fmt.Sprintf("%d fewer affiliates would be eligible", between)
		default:
			s.Description = "Current threshold"
		}
		out.Scenarios = append(out.Scenarios, s)
	}
	return out
}

// inRange reports whether amount lies in [min(a,b), max(a,b)).
func inRange(amount, a, b decimal.Decimal) bool {
	lo, hi := decimal.Min(a, b), decimal.Max(a, b)
	return amount.GreaterThanOrEqual(lo) && amount.LessThan(hi)
}

// HasBankDetails reports whether a carries every field a bank disbursement needs.
func HasBankDetails(a domain.Affiliate) bool {
	return strings.TrimSpace(a.BankCode) != "" &&
		strings.TrimSpace(a.BankAccountNumber) != "" &&
		strings.TrimSpace(a.BankAccountName) != ""
}

// HasGCashDetails reports whether a carries a wallet number and name.
func HasGCashDetails(a domain.Affiliate) bool {
	return strings.TrimSpace(a.GCashNumber) != "" && strings.TrimSpace(a.GCashName) != ""
}

// MonthsPending counts whole 30-day months since oldest.
func MonthsPending(oldest, now time.Time) int {
	return DaysPending(oldest, now) / 30
}

// UrgentGap reports whether money has waited long enough to chase the affiliate.
func UrgentGap(monthsPending int) bool {
	return monthsPending > urgentMonths
}

// MonthlyTotals sums conversion amounts per calendar month, oldest month first.
func MonthlyTotals(conversions []domain.EligibleConversion) []decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, c := range conversions {
		key := c.CreatedAt.UTC().Format("2006-01")
		sums[key] = sums[key].Add(c.CommissionAmount)
	}
	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Strings(months)
	out := make([]decimal.Decimal, len(months))
	for i, m := range months {
		out[i] = sums[m]
	}
	return out
}

// Projection is the growth estimate for one below-threshold affiliate.
type Projection struct {
	MonthlyGrowth     decimal.Decimal
	MonthsToThreshold int
	Trend             string
	Confidence        string
}

// ProjectRollover estimates how many months an affiliate holding current
// needs to reach threshold. Growth is the mean month-over-month change and
// needs at least three months of history; without positive growth the
// estimate defaults to a year. The estimate is clamped to [1, 24].
func ProjectRollover(threshold, current decimal.Decimal, monthly []decimal.Decimal) Projection {
	p := Projection{
		MonthlyGrowth:     decimal.Zero,
		MonthsToThreshold: defaultMonthsToThreshold,
		Trend:             domain.TrendStable,
		Confidence:        domain.ConfidenceMedium,
	}

	if len(monthly) >= 3 {
		var deltas []decimal.Decimal
		for i := 1; i < len(monthly); i++ {
			if monthly[i-1].IsPositive() {
				deltas = append(deltas, monthly[i].Sub(monthly[i-1]))
			}
		}
		if len(deltas) > 0 {
			p.MonthlyGrowth = decimal.Sum(deltas[0], deltas[1:]...).Div(decimal.NewFromInt(int64(len(deltas)))).Round(2)
			band := decimal.NewFromInt(growthBand)
			switch {
			case p.MonthlyGrowth.GreaterThan(band):
				p.Trend, p.Confidence = domain.TrendIncreasing, domain.ConfidenceHigh
			case p.MonthlyGrowth.LessThan(band.Neg()):
				p.Trend, p.Confidence = domain.TrendDecreasing, domain.ConfidenceLow
			}
		}
	}

	if p.MonthlyGrowth.IsPositive() {
		remaining := threshold.Sub(current)
		p.MonthsToThreshold = int(remaining.Div(p.MonthlyGrowth).Ceil().IntPart())
	}
	p.MonthsToThreshold = min(max(p.MonthsToThreshold, 1), maxMonthsToThreshold)
	return p
}
