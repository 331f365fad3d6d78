package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrAccountLocked(msg string) *AppError {
	return &AppError{Code: "ACCOUNT_LOCKED", Message: msg, Status: 429}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

// ErrInvalidState rejects an operation against a batch or payout in the wrong status.
func ErrInvalidState(entity, id string, current, required string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("%s %s is %s, must be %s", entity, id, current, required),
		Status:  409,
	}
}

// ErrConfiguration reports missing or unreadable program settings.
func ErrConfiguration(msg string, cause error) *AppError {
	return &AppError{Code: "CONFIGURATION_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrPreviewRejected is returned when any requested affiliate fails validation.
func ErrPreviewRejected(msg string) *AppError {
	return &AppError{Code: "PREVIEW_REJECTED", Message: msg, Status: 422}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
