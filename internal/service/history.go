package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
)

const (
	historyView = "history"
	statsView   = "stats"

	exportPageSize = 200
	exportMaxRows  = 10000
)

// History returns one page of payout history. Pages are served from the view
// cache when one is configured.
func (s *PayoutService) History(ctx context.Context, filter domain.PayoutFilter) (*domain.PayoutHistory, error) {
	filter.Normalize()

	var cached domain.PayoutHistory
	if s.cache.GetJSON(ctx, historyView, filter, &cached) {
		return &cached, nil
	}

	rows, total, amount, err := s.repos.Payouts.History(ctx, s.db, filter)
	if err != nil {
		return nil, domain.ErrInternal("payout history", err)
	}
	if rows == nil {
		rows = []domain.PayoutHistoryRow{}
	}
	out := &domain.PayoutHistory{
		Payouts:     rows,
		TotalCount:  total,
		TotalAmount: amount,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}
	s.cache.SetJSON(ctx, historyView, filter, out)
	return out, nil
}

// Stats summarizes payouts and batches per status.
func (s *PayoutService) Stats(ctx context.Context) (*domain.PayoutStats, error) {
	var cached domain.PayoutStats
	if s.cache.GetJSON(ctx, statsView, nil, &cached) {
		return &cached, nil
	}

	payouts, err := s.repos.Payouts.StatusTotals(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("payout totals", err)
	}
	batches, err := s.repos.Batches.StatusTotals(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("batch totals", err)
	}
	out := &domain.PayoutStats{Payouts: payouts, Batches: batches}
	s.cache.SetJSON(ctx, statsView, nil, out)
	return out, nil
}

// PayoutDetail is a payout with its line items and audit trail.
type PayoutDetail struct {
	Payout   domain.Payout          `json:"payout"`
	Items    []domain.PayoutItem    `json:"items"`
	Activity []domain.ActivityEntry `json:"activity"`
}

// GetPayout returns one payout with its items and recent activity.
func (s *PayoutService) GetPayout(ctx context.Context, id uuid.UUID) (*PayoutDetail, error) {
	p, err := s.repos.Payouts.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("get payout", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("payout", id.String())
	}
	items, err := s.repos.Items.ListByPayout(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list payout items", err)
	}
	entries, err := s.repos.Activity.ListByTarget(ctx, s.db, id, 50)
	if err != nil {
		return nil, domain.ErrInternal("list payout activity", err)
	}
	if items == nil {
		items = []domain.PayoutItem{}
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	return &PayoutDetail{Payout: *p, Items: items, Activity: entries}, nil
}

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ExportFile is a rendered payout export.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// CSVHeader is the header row of CSV exports.
var CSVHeader = []string{
	"Payout ID", "Affiliate ID", "Affiliate Name", "Affiliate Email", "Amount", "Status",
	"Payout Method", "Reference", "Transaction Date", "Created At", "Processed At",
	"Disbursement ID", "Processing Notes", "Fee Amount", "Net Amount", "Batch ID",
}

// Export renders every payout matching filter, up to 10000 rows. Without
// includeDetails the JSON rows carry only summary fields.
func (s *PayoutService) Export(ctx context.Context, filter domain.PayoutFilter, format ExportFormat, includeDetails bool, adminID uuid.UUID) (*ExportFile, error) {
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportJSON {
		return nil, domain.ErrValidation(fmt.Sprintf("unsupported export format: %s", format))
	}

	rows, err := s.exportRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrValidation("no payout data found for the specified filters")
	}

	now := s.now()
	file := &ExportFile{
		Filename: fmt.Sprintf("payout-export-%s.%s", now.UTC().Format("2006-01-02"), format),
		Rows:     len(rows),
	}
	switch format {
	case ExportCSV:
		file.ContentType = "text/csv"
		file.Body, err = renderCSV(rows)
	case ExportJSON:
		file.ContentType = "application/json"
		file.Body, err = renderJSON(rows, filter, includeDetails, now)
	}
	if err != nil {
		return nil, domain.ErrInternal("render export", err)
	}

	entry := activity(domain.ActivityPayoutsExported, adminID,
		fmt.Sprintf("Exported %d payout records as %s", len(rows), format), nil, map[string]any{
			"format":        format,
			"total_records": len(rows),
			"filters":       filter,
		})
	if err := s.repos.Activity.Insert(ctx, s.db, entry); err != nil {
		s.logger.Warn("failed to log export activity", "error", err)
	}
	return file, nil
}

func (s *PayoutService) exportRows(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutHistoryRow, error) {
	filter.Page = 1
	filter.PageSize = exportPageSize
	var out []domain.PayoutHistoryRow
	for len(out) < exportMaxRows {
		rows, total, _, err := s.repos.Payouts.History(ctx, s.db, filter)
		if err != nil {
			return nil, domain.ErrInternal("payout history", err)
		}
		out = append(out, rows...)
		if len(rows) < filter.PageSize || len(out) >= total {
			break
		}
		filter.Page++
	}
	if len(out) > exportMaxRows {
		out = out[:exportMaxRows]
	}
	return out, nil
}

func renderCSV(rows []domain.PayoutHistoryRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ID.String(),
			r.AffiliateID.String(),
			r.AffiliateName,
			r.AffiliateEmail,
			r.Amount.StringFixed(2),
			string(r.Status),
			string(r.PayoutMethod),
			deref(r.Reference),
			formatDate(r.ProcessedAt),
			r.CreatedAt.UTC().Format(time.RFC3339),
			formatTime(r.ProcessedAt),
			deref(r.ProviderDisbursementID),
			deref(r.ProcessingNotes),
			r.FeeAmount.StringFixed(2),
			r.NetAmount.StringFixed(2),
			"",
		}
		if r.BatchID != nil {
			record[15] = r.BatchID.String()
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type exportSummary struct {
	PayoutID      uuid.UUID           `json:"payout_id"`
	AffiliateID   uuid.UUID           `json:"affiliate_id"`
	AffiliateName string              `json:"affiliate_name"`
	Amount        string              `json:"amount"`
	Status        domain.PayoutStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func renderJSON(rows []domain.PayoutHistoryRow, filter domain.PayoutFilter, includeDetails bool, now time.Time) ([]byte, error) {
	var payouts any = rows
	if !includeDetails {
		summary := make([]exportSummary, len(rows))
		for i, r := range rows {
			summary[i] = exportSummary{
				PayoutID:      r.ID,
				AffiliateID:   r.AffiliateID,
				AffiliateName: r.AffiliateName,
				Amount:        r.Amount.StringFixed(2),
				Status:        r.Status,
				CreatedAt:     r.CreatedAt,
			}
		}
		payouts = summary
	}
	return json.MarshalIndent(map[string]any{
		"export_metadata": map[string]any{
			"generated_at":    now.UTC().Format(time.RFC3339),
			"total_records":   len(rows),
			"filters_applied": filter,
			"format":          "json",
		},
		"payouts": payouts,
	}, "", "  ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
