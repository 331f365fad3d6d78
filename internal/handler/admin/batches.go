package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/attaboy/payouts/internal/auth"
	"github.com/attaboy/payouts/internal/domain"
	"github.com/attaboy/payouts/internal/handler"
	"github.com/attaboy/payouts/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BatchManager is the batch side of service.PayoutService.
type BatchManager interface {
	CreateBatch(ctx context.Context, req service.CreateBatchRequest, adminID uuid.UUID) (*domain.BatchSummary, error)
	VerifyBatch(ctx context.Context, batchID, adminID uuid.UUID, notes string) (*domain.PayoutBatch, error)
	DeleteBatch(ctx context.Context, batchID, adminID uuid.UUID) error
	GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.PayoutBatch, error)
	ListBatches(ctx context.Context, status domain.BatchStatus, page, pageSize int) (*service.BatchPage, error)
	BatchPayouts(ctx context.Context, batchID uuid.UUID) ([]domain.Payout, error)
}

// BatchProcessor is implemented by service.Dispatcher.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID, adminID uuid.UUID) (*domain.BatchProcessResult, error)
}

// BatchAdminHandler serves /admin/batches.
type BatchAdminHandler struct {
	batches   BatchManager
	processor BatchProcessor
}

// NewBatchAdminHandler creates a new BatchAdminHandler.
func NewBatchAdminHandler(batches BatchManager, processor BatchProcessor) *BatchAdminHandler {
	return &BatchAdminHandler{batches: batches, processor: processor}
}

// Create handles POST /admin/batches.
func (h *BatchAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateBatchRequest
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	summary, err := h.batches.CreateBatch(r.Context(), input, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusCreated, summary)
}

// List handles GET /admin/batches?status=&page=&page_size=.
func (h *BatchAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.BatchStatus(q.Get("status"))
	switch status {
	case "", domain.BatchPending, domain.BatchVerified, domain.BatchProcessing, domain.BatchCompleted, domain.BatchFailed:
	default:
		handler.RespondError(w, domain.ErrValidation("invalid status: "+string(status)))
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.batches.ListBatches(r.Context(), status, page, pageSize)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, result)
}

// Get handles GET /admin/batches/{id}.
func (h *BatchAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, batch)
}

// Payouts handles GET /admin/batches/{id}/payouts.
func (h *BatchAdminHandler) Payouts(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	payouts, err := h.batches.BatchPayouts(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, payouts)
}

// Verify handles POST /admin/batches/{id}/verify.
func (h *BatchAdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	var input struct {
		Notes string `json:"notes"`
	}
	if !handler.DecodeOrReject(w, r, &input) {
		return
	}

	batch, err := h.batches.VerifyBatch(r.Context(), id, auth.AdminIDFromContext(r.Context()), input.Notes)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, batch)
}

// Process handles POST /admin/batches/{id}/process.
func (h *BatchAdminHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	result, err := h.processor.ProcessBatch(r.Context(), id, auth.AdminIDFromContext(r.Context()))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondData(w, http.StatusOK, result)
}

// Delete handles DELETE /admin/batches/{id}.
func (h *BatchAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}

	if err := h.batches.DeleteBatch(r.Context(), id, auth.AdminIDFromContext(r.Context())); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}

func batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid batch id"))
		return uuid.Nil, false
	}
	return id, true
}
