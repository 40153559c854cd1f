package ledger_errors

import (
	"context"
	"errors"
	"net/http"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Vote casting rejections. These are client errors and are never retried.
var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollNotOpen      = errors.New("poll is not open for voting")
	ErrPollScheduled    = errors.New("poll has not opened yet")
	ErrPollClosed       = errors.New("poll is closed")
	ErrPollKindDisabled = errors.New("poll kind is disabled")
	ErrInvalidOption    = errors.New("option does not belong to poll")
	ErrAlreadyVoted     = errors.New("voter has already voted in this poll")
	ErrVoterRequired    = errors.New("voter identity is required for this poll")
	ErrPollLocked       = errors.New("poll voting parameters are locked once votes exist")
	ErrReceiptNotFound  = errors.New("receipt not found")
)

// ErrContended is returned when the per-poll write lock could not be acquired
// within the bounded wait. The request had no side effects and may be resubmitted.
var ErrContended = errors.New("poll is busy, try again")

// ErrIntegrityFault marks a fingerprint/receipt/sequence collision or a chain
// inconsistency discovered while writing. Never retried.
var ErrIntegrityFault = errors.New("ledger integrity fault")

// Retryable reports whether the caller may safely resubmit the identical request.
func Retryable(err error) bool {
	return errors.Is(err, ErrContended) || errors.Is(err, ErrServiceUnavailable)
}

// ReasonCode maps an error to the stable reason code surfaced to clients.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPollNotFound):
		return "POLL_NOT_FOUND"
	case errors.Is(err, ErrPollScheduled):
		return "POLL_SCHEDULED"
	case errors.Is(err, ErrPollClosed):
		return "POLL_CLOSED"
	case errors.Is(err, ErrPollNotOpen):
		return "POLL_NOT_OPEN"
	case errors.Is(err, ErrPollKindDisabled):
		return "POLL_KIND_DISABLED"
	case errors.Is(err, ErrInvalidOption):
		return "INVALID_OPTION"
	case errors.Is(err, ErrAlreadyVoted):
		return "ALREADY_VOTED"
	case errors.Is(err, ErrVoterRequired):
		return "VOTER_REQUIRED"
	case errors.Is(err, ErrPollLocked):
		return "POLL_LOCKED"
	case errors.Is(err, ErrReceiptNotFound):
		return "RECEIPT_NOT_FOUND"
	case errors.Is(err, ErrContended):
		return "CONTENDED"
	case errors.Is(err, ErrIntegrityFault):
		return "INTEGRITY_FAULT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus maps an error to the HTTP status used by the API layer.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrVoterRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrPollKindDisabled):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPollNotFound), errors.Is(err, ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPollNotOpen), errors.Is(err, ErrPollScheduled), errors.Is(err, ErrPollClosed),
		errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrPollLocked),
		errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrContended), errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Internal faults
// and unavailable backends never leak their cause.
func PublicMessage(err error) string {
	if errors.Is(err, ErrServiceUnavailable) {
		return ErrServiceUnavailable.Error()
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		if errors.Is(err, ErrIntegrityFault) {
			return ErrIntegrityFault.Error()
		}
		return "internal error"
	}
	return err.Error()
}
