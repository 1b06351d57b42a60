package domain

import "errors"

var (
	ErrNotFound         = errors.New("event_not_found")
	ErrPaymentRequired  = errors.New("payment_required")
	ErrNotAttending     = errors.New("not_attending")
	ErrConcurrentUpdate = errors.New("concurrent_update")
	ErrInvalidRequest   = errors.New("invalid_request")
)
