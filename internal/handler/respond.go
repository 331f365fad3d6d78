package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/attaboy/payouts/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondData wraps data in the success envelope {"data": ...}.
func RespondData(w http.ResponseWriter, status int, data interface{}) {
	RespondJSON(w, status, map[string]interface{}{"data": data})
}

// RespondError writes {"error": {"code", "message"}}, taking the status from
// a wrapped domain.AppError. Anything else is a 500 with a generic message.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, errorBody(appErr.Code, appErr.Message))
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "internal server error"))
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}
}

// DecodeJSON reads and decodes a JSON request body into dst. Bodies over
// 1 MiB are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst)
}

// DecodeOrReject decodes the body and writes a 400 on failure. It reports
// whether the handler should continue.
func DecodeOrReject(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := DecodeJSON(r, dst); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return false
	}
	return true
}
