package policy

import (
	"net/http"
	"strings"

	"github.com/attaboy/payouts/internal/domain"
)

// maxAttempts bounds how often a failure of each type is worth resubmitting.
var maxAttempts = map[domain.DispatchErrorType]int{
	domain.ErrorTypeNetwork:        5,
	domain.ErrorTypeAPI:            3,
	domain.ErrorTypeRateLimit:      10,
	domain.ErrorTypeTimeout:        3,
	domain.ErrorTypeDatabase:       3,
	domain.ErrorTypeAuthentication: 1,
	domain.ErrorTypeValidation:     1,
	domain.ErrorTypeInsufficient:   1,
	domain.ErrorTypeBankDetails:    1,
	domain.ErrorTypeUnknown:        2,
}

// ClassifyDispatchError classifies a failed submission. code and status
// come from a provider rejection and are empty for local failures, which
// are classified from message alone.
func ClassifyDispatchError(code string, status int, message string) domain.DispatchErrorClass {
	typ, severity := classify(strings.ToUpper(code), status, strings.ToLower(message))
	c := domain.DispatchErrorClass{
		Type:        typ,
		Code:        code,
		Severity:    severity,
		MaxAttempts: maxAttempts[typ],
	}
	switch typ {
	case domain.ErrorTypeAuthentication, domain.ErrorTypeInsufficient,
		domain.ErrorTypeBankDetails, domain.ErrorTypeValidation:
		c.ManualIntervention = true
	}
	c.Retryable = c.MaxAttempts > 1
	return c
}

func classify(code string, status int, msg string) (domain.DispatchErrorType, domain.DispatchErrorSeverity) {
	switch code {
	case "INVALID_API_KEY", "UNAUTHORIZED", "REQUEST_FORBIDDEN_ERROR":
		return domain.ErrorTypeAuthentication, domain.SeverityHigh
	case "INSUFFICIENT_BALANCE":
		return domain.ErrorTypeInsufficient, domain.SeverityHigh
	case "INVALID_BANK_CODE", "INVALID_ACCOUNT_NUMBER", "ACCOUNT_NUMBER_NOT_FOUND", "INVALID_DESTINATION":
		return domain.ErrorTypeBankDetails, domain.SeverityMedium
	case "RATE_LIMIT_EXCEEDED":
		return domain.ErrorTypeRateLimit, domain.SeverityLow
	case "":
	default:
		return domain.ErrorTypeAPI, domain.SeverityMedium
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrorTypeAuthentication, domain.SeverityHigh
	case status == http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimit, domain.SeverityLow
	case status >= 500:
		return domain.ErrorTypeAPI, domain.SeverityMedium
	}

	switch {
	case containsAny(msg, "timeout", "deadline exceeded"):
		return domain.ErrorTypeTimeout, domain.SeverityMedium
	case containsAny(msg, "connection refused", "connection reset", "no such host", "circuit open", "eof"):
		return domain.ErrorTypeNetwork, domain.SeverityMedium
	case containsAny(msg, "duplicate key", "constraint", "database"):
		return domain.ErrorTypeDatabase, domain.SeverityMedium
	case containsAny(msg, "invalid", "required", "not verified", "unsupported", "not pending"):
		return domain.ErrorTypeValidation, domain.SeverityMedium
	case status >= 400:
		return domain.ErrorTypeAPI, domain.SeverityMedium
	}
	return domain.ErrorTypeUnknown, domain.SeverityMedium
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
