package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/service"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// EventConstructor verifies a raw webhook delivery and parses it into a
// typed event. The LemonSqueezy client satisfies it.
type EventConstructor interface {
	ConstructWebhookEvent(rawBody []byte, signature string) (domain.WebhookEvent, error)
}

// WebhookHandler receives billing provider webhook deliveries
type WebhookHandler struct {
	constructor EventConstructor
	webhookSvc  service.WebhookService
	log         *logger.Logger
}

// NewWebhookHandler creates the webhook endpoint handler
func NewWebhookHandler(constructor EventConstructor, webhookSvc service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		constructor: constructor,
		webhookSvc:  webhookSvc,
		log:         log,
	}
}

// HandleWebhook verifies the signature over the exact raw bytes and
// processes the event. The provider only needs an acknowledgement, so
// processing failures still return 200; only a missing body or a bad
// signature is rejected.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil || len(rawBody) == 0 {
		h.log.Warn("Webhook with unreadable or empty body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing webhook body"})
		return
	}

	signature := c.GetHeader("X-Signature")
	event, err := h.constructor.ConstructWebhookEvent(rawBody, signature)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.log.Warn("Webhook signature verification failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
		// Verified but unparseable payloads are acknowledged so the
		// provider stops redelivering them.
		h.log.Error("Failed to parse verified webhook payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// Processing is detached from the request context so a client
	// disconnect cannot abort a half-applied transition.
	if err := h.webhookSvc.ProcessEvent(context.WithoutCancel(c.Request.Context()), event); err != nil {
		h.log.Error("Webhook event processing failed: event=%s err=%v", event.Name, err)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
