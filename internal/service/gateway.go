package service

import (
	"context"

	"github.com/nutrilog/billing-service/internal/domain"
)

// BillingGateway is the outbound surface of the billing provider as the
// services consume it. The LemonSqueezy client satisfies it; tests
// substitute a fake.
type BillingGateway interface {
	CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error)
	GetCheckout(ctx context.Context, checkoutID string) (domain.CheckoutView, error)
	GetOrder(ctx context.Context, orderID string) (domain.OrderView, error)
	ListOrdersByEmail(ctx context.Context, email string, page, pageSize int) ([]domain.OrderView, error)
	GetSubscription(ctx context.Context, subscriptionID string) (domain.SubscriptionView, error)
	ListSubscriptionsByEmail(ctx context.Context, email, status string, page, pageSize int) ([]domain.SubscriptionView, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ReactivateSubscription(ctx context.Context, subscriptionID string) error
	GetPortalURL(ctx context.Context, subscriptionID string) (string, error)
}
