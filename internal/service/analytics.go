package service

import (
	"context"
	"sort"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/policy"
	"github.com/shopspring/decimal"
)

// ThresholdImpact shows how the payable pool would change under other
// minimum payout thresholds.
func (s *PayoutService) ThresholdImpact(ctx context.Context) (*domain.ThresholdImpact, error) {
	cfg, err := programConfig(ctx, s.db, s.repos.ProgramConfig)
	if err != nil {
		return nil, err
	}
	groups, err := s.EligiblePayouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	totals := make([]decimal.Decimal, len(groups))
	for i, g := range groups {
		totals[i] = g.TotalAmount
	}
	out := policy.ThresholdImpact(cfg.MinPayoutThreshold, totals)
	return &out, nil
}

// PaymentMethodGaps lists affiliates holding cleared commissions whose bank
// or wallet details are missing, or who have no verified payout method.
func (s *PayoutService) PaymentMethodGaps(ctx context.Context) (*domain.PaymentMethodGaps, error) {
	groups, err := s.EligiblePayouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &domain.PaymentMethodGaps{
		MissingBank:  []domain.PaymentGap{},
		MissingGCash: []domain.PaymentGap{},
		Unverified:   []domain.PaymentGap{},
		Summary:      domain.PaymentGapSummary{PendingAmount: decimal.Zero},
	}
	for _, g := range groups {
		gap := domain.PaymentGap{
			AffiliateID:   g.AffiliateID,
			AffiliateName: g.AffiliateName,
			Email:         g.Email,
			PendingAmount: g.TotalAmount,
			MonthsPending: policy.MonthsPending(oldestConversion(g), now),
		}
		a := g.Affiliate
		var listed bool
		if !policy.HasBankDetails(a) {
			out.MissingBank = append(out.MissingBank, gap)
			listed = true
		}
		if !policy.HasGCashDetails(a) {
			out.MissingGCash = append(out.MissingGCash, gap)
			listed = true
		}
		if !a.GCashVerified && !a.BankAccountVerified {
			out.Unverified = append(out.Unverified, gap)
			listed = true
		}
		if !listed {
			continue
		}
		out.Summary.AffiliatesWithGaps++
		out.Summary.PendingAmount = out.Summary.PendingAmount.Add(g.TotalAmount)
		if policy.UrgentGap(gap.MonthsPending) {
			out.Summary.UrgentCases++
		}
	}

	for _, list := range [][]domain.PaymentGap{out.MissingBank, out.MissingGCash, out.Unverified} {
		sort.SliceStable(list, func(i, j int) bool { return list[i].PendingAmount.GreaterThan(list[j].PendingAmount) })
	}
	return out, nil
}

// RolloverProjections estimates when each affiliate below the payout
// threshold will have earned enough to be paid.
func (s *PayoutService) RolloverProjections(ctx context.Context) (*domain.RolloverReport, error) {
	cfg, err := programConfig(ctx, s.db, s.repos.ProgramConfig)
	if err != nil {
		return nil, err
	}
	groups, err := s.EligiblePayouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &domain.RolloverReport{
		Threshold:   cfg.MinPayoutThreshold,
		Projections: []domain.RolloverProjection{},
		Summary:     domain.RolloverSummary{RolloverAmount: decimal.Zero, AvgMonthsToPayout: decimal.Zero},
	}
	var totalMonths int
	for _, g := range groups {
		if !g.TotalAmount.LessThan(cfg.MinPayoutThreshold) {
			continue
		}
		p := policy.ProjectRollover(cfg.MinPayoutThreshold, g.TotalAmount, policy.MonthlyTotals(g.Conversions))
		out.Projections = append(out.Projections, domain.RolloverProjection{
			AffiliateID:        g.AffiliateID,
			AffiliateName:      g.AffiliateName,
			Email:              g.Email,
			CurrentAmount:      g.TotalAmount,
			MonthlyGrowth:      p.MonthlyGrowth,
			MonthsToThreshold:  p.MonthsToThreshold,
			EstimatedPayoutDue: now.AddDate(0, p.MonthsToThreshold, 0).Format("2006-01"),
			Confidence:         p.Confidence,
			Trend:              p.Trend,
		})
		out.Summary.RolloverAmount = out.Summary.RolloverAmount.Add(g.TotalAmount)
		totalMonths += p.MonthsToThreshold
		if p.MonthsToThreshold <= 1 {
			out.Summary.NextMonthGraduates++
		}
	}

	sort.SliceStable(out.Projections, func(i, j int) bool {
		return out.Projections[i].MonthsToThreshold < out.Projections[j].MonthsToThreshold
	})
	out.Summary.Affiliates = len(out.Projections)
	if n := len(out.Projections); n > 0 {
		out.Summary.AvgMonthsToPayout = decimal.NewFromInt(int64(totalMonths)).Div(decimal.NewFromInt(int64(n))).Round(1)
	}
	return out, nil
}

func oldestConversion(g domain.EligibleAffiliate) time.Time {
	var oldest time.Time
	for i, c := range g.Conversions {
		if i == 0 || c.CreatedAt.Before(oldest) {
			oldest = c.CreatedAt
		}
	}
	return oldest
}
