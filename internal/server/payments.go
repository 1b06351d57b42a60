package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
)

type checkoutRequest struct {
	EventID   string   `json:"event_id"`
	Positions []string `json:"positions"`
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
}

type verifyResponse struct {
	Verified        bool   `json:"verified"`
	SessionID       string `json:"session_id"`
	EventID         string `json:"event_id"`
	Attendance      string `json:"attendance"`
	PaymentRecorded bool   `json:"payment_recorded"`
	Refunded        bool   `json:"refunded"`
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil || eventID <= 0 {
		AbortWithError(c, newValidationError("event_id", "invalid_id", "invalid event id"))
		return
	}

	result, err := s.paymentSvc.CreateCheckout(c.Request.Context(), paymentdomain.CreateCheckoutRequest{
		EventID:   eventID,
		UserID:    callerID(c),
		Positions: req.Positions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VerifyPayment settles a session on return from the hosted checkout page,
// in case the webhook has not arrived yet.
func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		AbortWithError(c, newValidationError("session_id", "required", "session_id is required"))
		return
	}

	completion, err := s.paymentSvc.CompleteSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Verified:        true,
		SessionID:       completion.SessionID,
		EventID:         completion.EventID.String(),
		Attendance:      string(completion.Attendance),
		PaymentRecorded: completion.PaymentRecorded,
		Refunded:        completion.Refunded,
	})
}

func (s *Server) Onboard(c *gin.Context) {
	link, err := s.paymentSvc.Onboard(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (s *Server) OnboardStatus(c *gin.Context) {
	status, err := s.paymentSvc.RefreshOnboarding(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
