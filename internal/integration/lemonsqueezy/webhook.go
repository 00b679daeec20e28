package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nutrilog/billing-service/internal/domain"
)

// VerifyWebhookSignature checks the HMAC-SHA256 signature over the exact
// raw request bytes. The comparison is constant-time.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if signature == "" || len(rawBody) == 0 {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	if !hmac.Equal(expected, provided) {
		return domain.ErrSignatureInvalid
	}

	return nil
}

type webhookEnvelope struct {
	Meta struct {
		EventName  string     `json:"event_name"`
		CustomData customData `json:"custom_data"`
	} `json:"meta"`
	Data resource `json:"data"`
}

// ConstructWebhookEvent verifies the signature and parses the payload
// into a typed event. Order events carry an OrderView, subscription
// events a SubscriptionView.
func (c *Client) ConstructWebhookEvent(rawBody []byte, signature string) (domain.WebhookEvent, error) {
	if err := c.VerifyWebhookSignature(rawBody, signature); err != nil {
		return domain.WebhookEvent{}, err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	event := domain.WebhookEvent{
		Name:   domain.WebhookEventName(envelope.Meta.EventName),
		UserID: envelope.Meta.CustomData.str("user_id"),
	}

	switch envelope.Data.Type {
	case "orders":
		order, err := orderViewFromResource(envelope.Data)
		if err != nil {
			return domain.WebhookEvent{}, err
		}
		if order.UserID == "" {
			order.UserID = event.UserID
		}
		event.Order = &order
	case "subscriptions":
		sub, err := subscriptionViewFromResource(envelope.Data)
		if err != nil {
			return domain.WebhookEvent{}, err
		}
		sub.UserID = event.UserID
		sub.PlanHint = envelope.Meta.CustomData.str("plan")
		event.Subscription = &sub
	}

	return event, nil
}
