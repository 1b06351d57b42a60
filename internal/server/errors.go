package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate_limited")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// domainErrors are surfaced to clients by their sentinel code.
var domainErrors = []error{
	eventdomain.ErrNotFound,
	eventdomain.ErrPaymentRequired,
	eventdomain.ErrNotAttending,
	eventdomain.ErrConcurrentUpdate,
	paymentdomain.ErrEventNotFound,
	paymentdomain.ErrOrganizerNotFound,
	paymentdomain.ErrUserNotFound,
	paymentdomain.ErrEventNotPaid,
	paymentdomain.ErrOrganizerPaymentsDisabled,
	paymentdomain.ErrAlreadyAttending,
	paymentdomain.ErrSessionNotFound,
	paymentdomain.ErrInvalidSessionType,
	paymentdomain.ErrInvalidMetadata,
	paymentdomain.ErrPaymentIncomplete,
	paymentdomain.ErrPastDeadline,
	paymentdomain.ErrZeroAmount,
	paymentdomain.ErrInvalidSignature,
	paymentdomain.ErrInvalidPayload,
	transactiondomain.ErrInvalidTransaction,
	transactiondomain.ErrPaymentNotFound,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	code := domainErrorCode(err)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests, retry later",
		}
	case errors.Is(err, eventdomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    code,
			Message: "the event changed concurrently, retry the request",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: "not found",
		}
	case isBadRequestError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Code:    code,
			Message: "request rejected",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, transactiondomain.ErrPaymentNotFound),
		paymentdomain.Kind(err) == paymentdomain.KindNotFound:
		return true
	default:
		return false
	}
}

func isBadRequestError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, eventdomain.ErrInvalidRequest),
		errors.Is(err, eventdomain.ErrPaymentRequired),
		errors.Is(err, eventdomain.ErrNotAttending),
		errors.Is(err, transactiondomain.ErrInvalidTransaction):
		return true
	}
	switch paymentdomain.Kind(err) {
	case paymentdomain.KindInvalidRequest,
		paymentdomain.KindPaymentIncomplete,
		paymentdomain.KindPastDeadline,
		paymentdomain.KindZeroAmount:
		return true
	default:
		return false
	}
}

func domainErrorCode(err error) string {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, eventdomain.ErrInvalidRequest) {
		return ErrInvalidRequest.Error()
	}
	return ""
}

// classifyErrorForLog feeds the request logger without leaking internals.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, string(paymentdomain.Kind(err))
	}
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	return payload.Type, payload.Type
}
