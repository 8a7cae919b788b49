package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput          = "RELAY_BAD_INPUT"
	RelayErrorExtraction        = "RELAY_EXTRACTION_FAILED"
	RelayErrorAccessDenied      = "RELAY_ACCESS_DENIED"
	RelayErrorConfigMissing     = "RELAY_CONFIG_MISSING"
	RelayErrorClaimConflict     = "RELAY_CLAIM_CONFLICT"
	RelayErrorDeliveryRetryable = "RELAY_DELIVERY_RETRYABLE"
	RelayErrorDeliveryTerminal  = "RELAY_DELIVERY_TERMINAL"
	RelayErrorInternal          = "RELAY_INTERNAL_ERROR"
)

func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "terminal delivery"), strings.Contains(msg, "retries exhausted"):
		return newRelayError(err.Error(), goerrors.CategoryExternal, RelayErrorDeliveryTerminal)
	case strings.Contains(msg, "retryable delivery"):
		return newRelayError(err.Error(), goerrors.CategoryExternal, RelayErrorDeliveryRetryable)
	case strings.Contains(msg, "blocked"), strings.Contains(msg, "not authorized"), strings.Contains(msg, "denied"):
		return newRelayError(err.Error(), goerrors.CategoryAuthz, RelayErrorAccessDenied)
	case strings.Contains(msg, "parse"), strings.Contains(msg, "malformed"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorExtraction)
	case strings.Contains(msg, "not found"), strings.Contains(msg, "missing"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorConfigMissing)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func newRelayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRelayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryNotFound:
		return RelayErrorConfigMissing
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return RelayErrorAccessDenied
	case goerrors.CategoryConflict:
		return RelayErrorClaimConflict
	case goerrors.CategoryExternal:
		return RelayErrorDeliveryRetryable
	default:
		return RelayErrorInternal
	}
}

func relayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
