package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"sprynt-api/internal/domain/payments"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 65536

type Processor interface {
	Handle(ctx context.Context, payload []byte, signatureHeader string) (payments.Outcome, error)
}

type Handler struct {
	processor Processor
	log       *logrus.Entry
}

func NewHandler(processor Processor, log *logrus.Entry) *Handler {
	return &Handler{processor: processor, log: log}
}

// Receive handles POST /api/payments/webhook. Deliveries that fail
// verification get 400, store failures get 500 so the provider retries, and
// everything else, duplicates and ignored kinds included, gets 200.
func (h *Handler) Receive(c *gin.Context) {
	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing signature"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Payload too large"})
		return
	}

	outcome, err := h.processor.Handle(c.Request.Context(), payload, sig)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
	case errors.Is(err, payments.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid signature"})
	case errors.Is(err, payments.ErrMalformedEvent):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed event"})
	default:
		h.log.WithError(err).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
