package domain

// WebhookEventName is the provider's event name as delivered
type WebhookEventName string

const (
	WebhookEventOrderCreated          WebhookEventName = "order_created"
	WebhookEventSubscriptionCreated   WebhookEventName = "subscription_created"
	WebhookEventSubscriptionUpdated   WebhookEventName = "subscription_updated"
	WebhookEventSubscriptionResumed   WebhookEventName = "subscription_resumed"
	WebhookEventSubscriptionUnpaused  WebhookEventName = "subscription_unpaused"
	WebhookEventSubscriptionCancelled WebhookEventName = "subscription_cancelled"
	WebhookEventSubscriptionPaused    WebhookEventName = "subscription_paused"
	WebhookEventSubscriptionExpired   WebhookEventName = "subscription_expired"
)

// WebhookEvent is a validated, parsed provider event. Exactly one of
// Order or Subscription is set depending on the event name.
type WebhookEvent struct {
	Name         WebhookEventName
	UserID       string // from event meta custom data, may be empty
	Order        *OrderView
	Subscription *SubscriptionView
}
