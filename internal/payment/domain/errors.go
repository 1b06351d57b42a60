package domain

import (
	"errors"

	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	userdomain "github.com/smallbiznis/huddle/internal/user/domain"
)

var (
	ErrInvalidRequest            = errors.New("invalid_request")
	ErrEventNotFound             = errors.New("event_not_found")
	ErrOrganizerNotFound         = errors.New("organizer_not_found")
	ErrUserNotFound              = errors.New("user_not_found")
	ErrEventNotPaid              = errors.New("event_not_paid")
	ErrOrganizerPaymentsDisabled = errors.New("organizer_payments_disabled")
	ErrAlreadyAttending          = errors.New("already_attending")
	ErrSessionNotFound           = errors.New("checkout_session_not_found")
	ErrInvalidSessionType        = errors.New("invalid_session_type")
	ErrInvalidMetadata           = errors.New("invalid_session_metadata")
	ErrPaymentIncomplete         = errors.New("payment_incomplete")
	ErrPastDeadline              = errors.New("refund_past_deadline")
	ErrZeroAmount                = errors.New("refund_zero_amount")
	ErrGateway                   = errors.New("gateway_error")
	ErrInvalidConfig             = errors.New("invalid_config")
	ErrProviderNotFound          = errors.New("provider_not_found")
	ErrInvalidSignature          = errors.New("invalid_signature")
	ErrInvalidPayload            = errors.New("invalid_payload")
	ErrEventIgnored              = errors.New("event_ignored")
)

// ErrorKind groups payment errors by how callers should react to them.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindPaymentIncomplete ErrorKind = "payment_incomplete"
	KindPastDeadline      ErrorKind = "past_deadline"
	KindZeroAmount        ErrorKind = "zero_amount"
	KindGateway           ErrorKind = "gateway_error"
	KindInternal          ErrorKind = "internal"
)

// Kind classifies err. Unknown errors are internal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrOrganizerNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrEventNotPaid),
		errors.Is(err, ErrOrganizerPaymentsDisabled),
		errors.Is(err, ErrAlreadyAttending),
		errors.Is(err, ErrInvalidSessionType),
		errors.Is(err, ErrInvalidMetadata),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrInvalidPayload):
		return KindInvalidRequest
	case errors.Is(err, ErrPaymentIncomplete):
		return KindPaymentIncomplete
	case errors.Is(err, ErrPastDeadline):
		return KindPastDeadline
	case errors.Is(err, ErrZeroAmount):
		return KindZeroAmount
	case errors.Is(err, ErrGateway):
		return KindGateway
	default:
		return KindInternal
	}
}

// Retryable reports whether a webhook delivery that failed with err should be
// redelivered. Business rejections are final.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindNotFound, KindInvalidRequest, KindPaymentIncomplete:
		return false
	default:
		return err != nil
	}
}
