package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/attaboy/payouts/internal/service"
)

// CallbackProcessor is implemented by service.Reconciler.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, body []byte, token string) (*service.CallbackResult, error)
}

// WebhookHandler handles Xendit payout callbacks.
type WebhookHandler struct {
	reconciler CallbackProcessor
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler CallbackProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

// HandleXenditPayout handles POST /webhooks/xendit/payouts.
// The callback token travels in the x-callback-token header; the body is
// passed through raw.
func (h *WebhookHandler) HandleXenditPayout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.reconciler.HandleCallback(r.Context(), body, r.Header.Get("x-callback-token"))
	if err != nil {
		h.logger.Warn("xendit callback rejected", "error", err, "request_id", GetRequestID(r.Context()))
		RespondError(w, err)
		return
	}

	// Xendit retries anything but 2xx, so unknown payouts are acknowledged too.
	RespondJSON(w, http.StatusOK, result)
}
