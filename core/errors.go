package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	LeadErrorValidationFailed = "LEADS_VALIDATION_FAILED"
	LeadErrorSpamRejected     = "LEADS_SPAM_REJECTED"
	LeadErrorRateLimited      = "LEADS_RATE_LIMITED"
	LeadErrorSSRFBlocked      = "LEADS_SSRF_BLOCKED"
	LeadErrorChannelDisabled  = "LEADS_CHANNEL_DISABLED"
	LeadErrorNotFound         = "LEADS_NOT_FOUND"
	LeadErrorConflict         = "LEADS_CONFLICT"
	LeadErrorInternal         = "LEADS_INTERNAL_ERROR"
)

func leadErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureLeadErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "spam"), strings.Contains(msg, "honeypot"):
		return newLeadError(err.Error(), goerrors.CategoryBadInput, LeadErrorSpamRejected)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newLeadError(err.Error(), goerrors.CategoryRateLimit, LeadErrorRateLimited)
	case strings.Contains(msg, "blocked url"), strings.Contains(msg, "ssrf"):
		return newLeadError(err.Error(), goerrors.CategoryAuthz, LeadErrorSSRFBlocked)
	case strings.Contains(msg, "not found"):
		return newLeadError(err.Error(), goerrors.CategoryNotFound, LeadErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newLeadError(err.Error(), goerrors.CategoryBadInput, LeadErrorValidationFailed)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureLeadErrorEnvelope(mapped)
}

func newLeadError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureLeadErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureLeadErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = leadHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultLeadTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultLeadTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return LeadErrorValidationFailed
	case goerrors.CategoryNotFound:
		return LeadErrorNotFound
	case goerrors.CategoryAuthz:
		return LeadErrorSSRFBlocked
	case goerrors.CategoryConflict:
		return LeadErrorConflict
	case goerrors.CategoryRateLimit:
		return LeadErrorRateLimited
	default:
		return LeadErrorInternal
	}
}

func leadHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DefaultErrorMapper is the module-wide error envelope mapper.
func DefaultErrorMapper(err error) *goerrors.Error {
	return leadErrorMapper(err)
}
