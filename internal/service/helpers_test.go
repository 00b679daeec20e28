package service

import (
	"context"
	"io"
	"testing"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/pkg/logger"
)

const (
	testVariantMonthly  = "100"
	testVariantYearly   = "200"
	testVariantLifetime = "300"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func testCatalog() *catalog.Catalog {
	return catalog.New(catalog.VariantMapping{
		testVariantMonthly:  domain.PlanMonthly,
		testVariantYearly:   domain.PlanYearly,
		testVariantLifetime: domain.PlanLifetime,
	})
}

// fakeGateway implements BillingGateway with overridable behavior.
// Unset getters report not found, unset lists are empty, unset actions
// succeed.
type fakeGateway struct {
	createCheckout    func(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error)
	getCheckout       func(ctx context.Context, checkoutID string) (domain.CheckoutView, error)
	getOrder          func(ctx context.Context, orderID string) (domain.OrderView, error)
	listOrders        func(ctx context.Context, email string, page, pageSize int) ([]domain.OrderView, error)
	getSubscription   func(ctx context.Context, subscriptionID string) (domain.SubscriptionView, error)
	listSubscriptions func(ctx context.Context, email, status string, page, pageSize int) ([]domain.SubscriptionView, error)

	cancelCalls     []string
	reactivateCalls []string
	cancelErr       error
	reactivateErr   error
	portalURL       string
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if g.createCheckout == nil {
		return domain.CheckoutSession{ID: "chk_1", URL: "https://pay.example/chk_1"}, nil
	}
	return g.createCheckout(ctx, req)
}

func (g *fakeGateway) GetCheckout(ctx context.Context, checkoutID string) (domain.CheckoutView, error) {
	if g.getCheckout == nil {
		return domain.CheckoutView{}, domain.NewNotFoundError("checkout", checkoutID)
	}
	return g.getCheckout(ctx, checkoutID)
}

func (g *fakeGateway) GetOrder(ctx context.Context, orderID string) (domain.OrderView, error) {
	if g.getOrder == nil {
		return domain.OrderView{}, domain.NewNotFoundError("order", orderID)
	}
	return g.getOrder(ctx, orderID)
}

func (g *fakeGateway) ListOrdersByEmail(ctx context.Context, email string, page, pageSize int) ([]domain.OrderView, error) {
	if g.listOrders == nil {
		return nil, nil
	}
	return g.listOrders(ctx, email, page, pageSize)
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (domain.SubscriptionView, error) {
	if g.getSubscription == nil {
		return domain.SubscriptionView{}, domain.NewNotFoundError("subscription", subscriptionID)
	}
	return g.getSubscription(ctx, subscriptionID)
}

func (g *fakeGateway) ListSubscriptionsByEmail(ctx context.Context, email, status string, page, pageSize int) ([]domain.SubscriptionView, error) {
	if g.listSubscriptions == nil {
		return nil, nil
	}
	return g.listSubscriptions(ctx, email, status, page, pageSize)
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	g.cancelCalls = append(g.cancelCalls, subscriptionID)
	return g.cancelErr
}

func (g *fakeGateway) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	g.reactivateCalls = append(g.reactivateCalls, subscriptionID)
	return g.reactivateErr
}

func (g *fakeGateway) GetPortalURL(ctx context.Context, subscriptionID string) (string, error) {
	if g.portalURL == "" {
		return "", domain.NewNotFoundError("portal", subscriptionID)
	}
	return g.portalURL, nil
}

func newTestApplier(t *testing.T, repo repository.SubscriptionRepository, gw BillingGateway) *TransitionApplier {
	t.Helper()
	return NewTransitionApplier(repo, gw, testCatalog(), nil, metrics.NopBillingMetrics(), testLogger(t))
}
