package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/policy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EligiblePayouts groups every payable conversion by affiliate. Groups keep
// the order in which their newest conversion was seen.
func (s *PayoutService) EligiblePayouts(ctx context.Context, affiliateIDs []uuid.UUID) ([]domain.EligibleAffiliate, error) {
	rows, err := s.repos.Conversions.ListCleared(ctx, s.db, affiliateIDs)
	if err != nil {
		return nil, domain.ErrInternal("list cleared conversions", err)
	}

	now := s.now()
	index := make(map[uuid.UUID]int)
	var groups []domain.EligibleAffiliate
	for _, row := range rows {
		i, ok := index[row.AffiliateID]
		if !ok {
			i = len(groups)
			index[row.AffiliateID] = i
			groups = append(groups, domain.EligibleAffiliate{
				AffiliateID:   row.AffiliateID,
				AffiliateName: row.Affiliate.DisplayName(),
				Email:         row.Affiliate.Email,
				Affiliate:     row.Affiliate,
				TotalAmount:   decimal.Zero,
			})
		}
		g := &groups[i]
		g.Conversions = append(g.Conversions, domain.EligibleConversion{
			ID:               row.ID,
			OrderID:          row.OrderID,
			CommissionAmount: row.CommissionAmount,
			CreatedAt:        row.CreatedAt,
			DaysPending:      policy.DaysPending(row.CreatedAt, now),
		})
		g.TotalAmount = g.TotalAmount.Add(row.CommissionAmount)
		g.ConversionCount++
	}
	return groups, nil
}

// QuoteFee prices a single amount for a payout method.
func (s *PayoutService) QuoteFee(amount decimal.Decimal, method domain.PayoutMethod) (policy.FeeBreakdown, error) {
	if !method.Valid() {
		return policy.FeeBreakdown{}, domain.ErrValidation(fmt.Sprintf("unsupported payout method: %s", method))
	}
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return policy.FeeBreakdown{}, domain.ErrValidation(err.Error())
	}
	return policy.CalculateFee(amount, method), nil
}

// PreviewBatch validates and prices the selected affiliates. The preview is
// all or nothing: a single failing affiliate rejects the whole request.
func (s *PayoutService) PreviewBatch(ctx context.Context, affiliateIDs []uuid.UUID, method domain.PayoutMethod) (*domain.BatchPreview, error) {
	cfg, err := programConfig(ctx, s.db, s.repos.ProgramConfig)
	if err != nil {
		return nil, err
	}
	if !cfg.MethodEnabled(method) {
		return nil, domain.ErrValidation(fmt.Sprintf("payout method %s is not enabled", method))
	}

	groups, err := s.EligiblePayouts(ctx, affiliateIDs)
	if err != nil {
		return nil, err
	}

	preview := &domain.BatchPreview{PayoutMethod: method, Rows: []domain.PreviewRow{}}
	var failures []string
	for _, g := range groups {
		eval := policy.EvaluateAffiliate(cfg, g, method)
		if !eval.Passed() {
			failures = append(failures, fmt.Sprintf("%s: %s", g.AffiliateName, strings.Join(eval.Errors, "; ")))
			continue
		}
		row := priceRow(g, method, eval.Warnings)
		preview.Rows = append(preview.Rows, row)
		for _, w := range eval.Warnings {
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("%s: %s", g.AffiliateName, w))
		}
	}

	if len(failures) > 0 {
		return nil, domain.ErrPreviewRejected(fmt.Sprintf("%s. %d passed, %d failed",
			strings.Join(failures, " | "), len(preview.Rows), len(failures)))
	}

	preview.Totals = sumRows(preview.Rows)
	return preview, nil
}

// MonthlyPreview partitions every affiliate with payable conversions into
// this cycle's payouts and the amounts rolled over to the next one.
func (s *PayoutService) MonthlyPreview(ctx context.Context, method domain.PayoutMethod) (*domain.MonthlyPreview, error) {
	cfg, err := programConfig(ctx, s.db, s.repos.ProgramConfig)
	if err != nil {
		return nil, err
	}
	if !cfg.MethodEnabled(method) {
		return nil, domain.ErrValidation(fmt.Sprintf("payout method %s is not enabled", method))
	}

	groups, err := s.EligiblePayouts(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := &domain.MonthlyPreview{
		PayoutMethod:   method,
		Eligible:       []domain.PreviewRow{},
		Ineligible:     []domain.IneligibleAffiliate{},
		RolloverAmount: decimal.Zero,
		NextPayoutDate: policy.NextPayoutDate(s.now()),
	}
	for _, g := range groups {
		eval := policy.EvaluateAffiliate(cfg, g, method)
		if !eval.Passed() {
			out.Ineligible = append(out.Ineligible, domain.IneligibleAffiliate{
				EligibleAffiliate: g,
				RejectionReasons:  eval.Errors,
			})
			out.RolloverAmount = out.RolloverAmount.Add(g.TotalAmount)
			continue
		}
		out.Eligible = append(out.Eligible, priceRow(g, method, eval.Warnings))
	}
	out.Totals = sumRows(out.Eligible)
	return out, nil
}

func priceRow(g domain.EligibleAffiliate, method domain.PayoutMethod, warnings []string) domain.PreviewRow {
	fee := policy.CalculateFee(g.TotalAmount, method)
	return domain.PreviewRow{
		EligibleAffiliate: g,
		PayoutMethod:      method,
		FeeAmount:         fee.Fee,
		NetAmount:         fee.Net,
		Selected:          true,
		Warnings:          warnings,
	}
}

func sumRows(rows []domain.PreviewRow) domain.PreviewTotals {
	t := domain.PreviewTotals{TotalAmount: decimal.Zero, FeeAmount: decimal.Zero, NetAmount: decimal.Zero}
	for _, r := range rows {
		t.TotalAmount = t.TotalAmount.Add(r.TotalAmount)
		t.FeeAmount = t.FeeAmount.Add(r.FeeAmount)
		t.NetAmount = t.NetAmount.Add(r.NetAmount)
		t.AffiliateCount++
		t.ConversionCount += r.ConversionCount
	}
	return t
}
