package admin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/handler"
	"github.com/attaboy/payouts/internal/policy"
	"github.com/attaboy/payouts/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutQueries is the read side of service.PayoutService.
type PayoutQueries interface {
	EligiblePayouts(ctx context.Context, affiliateIDs []uuid.UUID) ([]domain.EligibleAffiliate, error)
	QuoteFee(amount decimal.Decimal, method domain.PayoutMethod) (policy.FeeBreakdown, error)
	PreviewBatch(ctx context.Context, affiliateIDs []uuid.UUID, method domain.PayoutMethod) (*domain.BatchPreview, error)
	MonthlyPreview(ctx context.Context, method domain.PayoutMethod) (*domain.MonthlyPreview, error)
	History(ctx context.Context, filter domain.PayoutFilter) (*domain.PayoutHistory, error)
	Stats(ctx context.Context) (*domain.PayoutStats, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*service.PayoutDetail, error)
	Export(ctx context.Context, filter domain.PayoutFilter, format service.ExportFormat, includeDetails bool, adminID uuid.UUID) (*service.ExportFile, error)
	ThresholdImpact(ctx context.Context) (*domain.ThresholdImpact, error)
	PaymentMethodGaps(ctx context.Context) (*domain.PaymentMethodGaps, error)
	RolloverProjections(ctx context.Context) (*domain.RolloverReport, error)
}

// PayoutDispatcher is implemented by service.Dispatcher.
type PayoutDispatcher interface {
	Dispatch(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.DispatchResult, error)
	RetryFailed(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.DispatchResult, error)
}

// PayoutSyncer is implemented by service.Reconciler.
type PayoutSyncer interface {
	Sync(ctx context.Context, payoutIDs []uuid.UUID, adminID uuid.UUID) (*domain.SyncResult, error)
}

// PayoutAdminHandler serves /admin/payouts.
type PayoutAdminHandler struct {
	payouts    PayoutQueries
	dispatcher PayoutDispatcher
	syncer     PayoutSyncer
}

// NewPayoutAdminHandler creates a new PayoutAdminHandler.
func NewPayoutAdminHandler(payouts PayoutQueries, dispatcher PayoutDispatcher, syncer PayoutSyncer) *PayoutAdminHandler {
	return &PayoutAdminHandler{payouts: payouts, dispatcher: dispatcher, syncer: syncer}
}

type payoutIDsRequest struct {
	PayoutIDs []uuid.UUID `json:"payout_ids"`
}

// Eligible handles GET /admin/payouts/eligible?affiliate_ids=a,b.
func (h *PayoutAdminHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("affiliate_ids"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid affiliate id"))
		return
	}

	eligible, err := h.payouts.EligiblePayouts(r.Context(), ids)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, eligible)
}

// Fees handles GET /admin/payouts/fees?amount=&method=.
func (h *PayoutAdminHandler) Fees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("amount must be a decimal number"))
		return
	}

	fee, err := h.payouts.QuoteFee(amount, domain.PayoutMethod(q.Get("method")))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, fee)
}

// Preview handles POST /admin/payouts/preview.
func (h *PayoutAdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AffiliateIDs []uuid.UUID         `json:"affiliate_ids"`
		PayoutMethod domain.PayoutMethod `json:"payout_method"`
	}
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	preview, err := h.payouts.PreviewBatch(r.Context(), input.AffiliateIDs, input.PayoutMethod)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, preview)
}

// MonthlyPreview handles POST /admin/payouts/preview/monthly.
func (h *PayoutAdminHandler) MonthlyPreview(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PayoutMethod domain.PayoutMethod `json:"payout_method"`
	}
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	preview, err := h.payouts.MonthlyPreview(r.Context(), input.PayoutMethod)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, preview)
}

// History handles GET /admin/payouts.
func (h *PayoutAdminHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	history, err := h.payouts.History(r.Context(), filter)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, history)
}

// Export handles GET /admin/payouts/export?format=csv|json. The file is
// written raw, not wrapped in the data envelope.
func (h *PayoutAdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	includeDetails, _ := strconv.ParseBool(q.Get("include_details"))

	file, err := h.payouts.Export(r.Context(), filter, service.ExportFormat(q.Get("format")), includeDetails, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Body)
}

// Stats handles GET /admin/payouts/stats.
func (h *PayoutAdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.payouts.Stats(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, stats)
}

// ThresholdImpact handles GET /admin/payouts/analytics/threshold-impact.
func (h *PayoutAdminHandler) ThresholdImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := h.payouts.ThresholdImpact(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, impact)
}

// PaymentGaps handles GET /admin/payouts/analytics/payment-gaps.
func (h *PayoutAdminHandler) PaymentGaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := h.payouts.PaymentMethodGaps(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, gaps)
}

// Rollover handles GET /admin/payouts/analytics/rollover.
func (h *PayoutAdminHandler) Rollover(w http.ResponseWriter, r *http.Request) {
	report, err := h.payouts.RolloverProjections(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, report)
}

// GetPayout handles GET /admin/payouts/{id}.
func (h *PayoutAdminHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid payout id"))
		return
	}

	detail, err := h.payouts.GetPayout(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, detail)
}

// Dispatch handles POST /admin/payouts/dispatch.
func (h *PayoutAdminHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var input payoutIDsRequest
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), input.PayoutIDs, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, result)
}

// Retry handles POST /admin/payouts/retry.
func (h *PayoutAdminHandler) Retry(w http.ResponseWriter, r *http.Request) {
	var input payoutIDsRequest
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	result, err := h.dispatcher.RetryFailed(r.Context(), input.PayoutIDs, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, result)
}

// Sync handles POST /admin/payouts/sync.
func (h *PayoutAdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var input payoutIDsRequest
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	result, err := h.syncer.Sync(r.Context(), input.PayoutIDs, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, result)
}

func parseIDList(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFilter reads history filters from the query string. Dates accept
// YYYY-MM-DD or RFC 3339; a bare date_to covers the whole day.
func parseFilter(r *http.Request) (domain.PayoutFilter, error) {
	q := r.URL.Query()
	var f domain.PayoutFilter

	if s := q.Get("status"); s != "" {
		st := domain.PayoutStatus(s)
		switch st {
		case domain.PayoutPending, domain.PayoutProcessing, domain.PayoutCompleted, domain.PayoutFailed:
			f.Status = st
		default:
			return f, domain.ErrValidation("invalid status: " + s)
		}
	}
	if m := q.Get("payout_method"); m != "" {
		if err := domain.ValidatePayoutMethod(m); err != nil {
			return f, domain.ErrValidation(err.Error())
		}
		f.PayoutMethod = domain.PayoutMethod(m)
	}
	for name, dst := range map[string]**uuid.UUID{"affiliate_id": &f.AffiliateID, "batch_id": &f.BatchID} {
		if s := q.Get(name); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return f, domain.ErrValidation("invalid " + name)
			}
			*dst = &id
		}
	}
	if s := q.Get("date_from"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return f, domain.ErrValidation("invalid date_from")
		}
		f.DateFrom = &t
	}
	if s := q.Get("date_to"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return f, domain.ErrValidation("invalid date_to")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.DateTo = &t
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	f.Normalize()
	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
