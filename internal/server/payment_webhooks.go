package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/huddle/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// HandleStripeWebhook acknowledges everything the webhook service accepted.
// Rejected signatures get a 400 and anything retryable a 500 so Stripe
// redelivers.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.webhookSvc.IngestWebhook(
		c.Request.Context(),
		stripe.ProviderName,
		payload,
		c.GetHeader(stripe.SignatureHeader),
	)
	if err != nil {
		if outcome == paymentdomain.WebhookRejected {
			c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": err.Error()})
			return
		}
		s.log.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
