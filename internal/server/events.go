package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
)

type joinRequest struct {
	Positions []string `json:"positions"`
}

func (s *Server) GetEvent(c *gin.Context) {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Get(c.Request.Context(), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

// JoinEvent adds the caller to a free event. Paid events answer with
// payment_required and the client goes through checkout instead.
func (s *Server) JoinEvent(c *gin.Context) {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.eventSvc.Join(c.Request.Context(), eventdomain.JoinRequest{
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

func (s *Server) LeaveEvent(c *gin.Context) {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.eventSvc.Leave(c.Request.Context(), eventdomain.LeaveRequest{
		EventID: eventID,
		UserID:  callerID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListEventTransactions shows the organizer every transaction on the event
// and any other caller only their own.
func (s *Server) ListEventTransactions(c *gin.Context) {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := c.Request.Context()

	event, err := s.eventSvc.Get(ctx, eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filter := transactiondomain.ListFilter{EventID: eventID}
	caller := callerID(c)
	if event.OrganizerID != caller {
		filter.UserID = &caller
	}
	switch kind := transactiondomain.Kind(strings.ToLower(strings.TrimSpace(c.Query("kind")))); kind {
	case "":
	case transactiondomain.KindPayment, transactiondomain.KindRefund:
		filter.Kind = &kind
	default:
		AbortWithError(c, newValidationError("kind", "invalid_kind", "kind must be payment or refund"))
		return
	}

	items, err := s.transactionSvc.List(ctx, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
