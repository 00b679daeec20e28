package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// ReconciliationService resolves a post-checkout token to a confirmed
// payment and applies it to the user's subscription.
type ReconciliationService interface {
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (domain.Subscription, error)
}

// VerifyPaymentRequest carries what the success redirect knows: an
// opaque token from the provider plus the authenticated user.
type VerifyPaymentRequest struct {
	UserID       uuid.UUID
	Email        string
	Token        string
	ExpectedPlan domain.SubscriptionPlan // optional, empty means any paid plan
}

// ReconciliationConfig tunes the resolution scan and the fallback poll.
// Zero values take the defaults.
type ReconciliationConfig struct {
	PollAttempts   int
	PollInterval   time.Duration
	OrderScanPages int
	OrderPageSize  int
	OrderMaxAge    time.Duration
}

const (
	defaultPollAttempts   = 15
	defaultPollInterval   = 2 * time.Second
	defaultOrderScanPages = 3
	defaultOrderPageSize  = 10
	defaultOrderMaxAge    = 30 * time.Minute
)

func (c ReconciliationConfig) withDefaults() ReconciliationConfig {
	if c.PollAttempts <= 0 {
		c.PollAttempts = defaultPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.OrderScanPages <= 0 {
		c.OrderScanPages = defaultOrderScanPages
	}
	if c.OrderPageSize <= 0 {
		c.OrderPageSize = defaultOrderPageSize
	}
	if c.OrderMaxAge <= 0 {
		c.OrderMaxAge = defaultOrderMaxAge
	}
	return c
}

type reconciliationService struct {
	applier *TransitionApplier
	repo    repository.SubscriptionRepository
	gateway BillingGateway
	catalog *catalog.Catalog
	metrics metrics.BillingMetrics
	log     *logger.Logger
	cfg     ReconciliationConfig
}

// NewReconciliationService creates the payment verification service
func NewReconciliationService(
	applier *TransitionApplier,
	repo repository.SubscriptionRepository,
	gateway BillingGateway,
	cat *catalog.Catalog,
	m metrics.BillingMetrics,
	log *logger.Logger,
	cfg ReconciliationConfig,
) ReconciliationService {
	return &reconciliationService{
		applier: applier,
		repo:    repo,
		gateway: gateway,
		catalog: cat,
		metrics: m,
		log:     log,
		cfg:     cfg.withDefaults(),
	}
}

var numericTokenPattern = regexp.MustCompile(`^\d+$`)

// orderResolver is one strategy for turning a verification request into
// a provider order id. Returning "" means no match; an error is soft
// and only logged, the next strategy still runs.
type orderResolver struct {
	name    string
	resolve func(ctx context.Context, req VerifyPaymentRequest) (string, error)
}

// VerifyPayment tries each resolution strategy in order, applies the
// first confirmed payment it finds, and otherwise falls back to polling
// the local store in case a webhook lands first. Resolution failures
// never abort verification early.
func (s *reconciliationService) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (domain.Subscription, error) {
	resolvers := []orderResolver{
		{name: "direct_order_id", resolve: s.resolveDirectOrderID},
		{name: "checkout_session", resolve: s.resolveViaCheckout},
		{name: "recent_orders", resolve: s.resolveFromRecentOrders},
	}

	for _, r := range resolvers {
		orderID, err := r.resolve(ctx, req)
		if err != nil {
			s.log.Warnw("Order resolution strategy failed", "strategy", r.name, "user_id", req.UserID, "error", err)
			continue
		}
		if orderID == "" {
			continue
		}
		applied, err := s.applyOrderID(ctx, req.UserID, orderID)
		if err != nil {
			s.log.Warnw("Could not apply resolved order", "strategy", r.name, "order_id", orderID, "error", err)
			continue
		}
		if applied {
			s.log.Infow("Payment verified", "strategy", r.name, "user_id", req.UserID, "order_id", orderID)
			s.metrics.IncVerification("resolved")
			return s.repo.GetByUserID(ctx, req.UserID)
		}
	}

	if applied := s.applyFromActiveSubscriptions(ctx, req); applied {
		s.metrics.IncVerification("resolved")
		return s.repo.GetByUserID(ctx, req.UserID)
	}

	// The webhook may still be in flight. Poll the local store for a
	// premium active row before giving up.
	sub, err := s.pollForPremium(ctx, req.UserID)
	if err != nil {
		s.log.Warnw("Payment verification timed out", "user_id", req.UserID, "token", req.Token)
		s.metrics.IncVerification("timeout")
		return domain.Subscription{}, domain.ErrVerificationTimeout
	}
	s.metrics.IncVerification("polled")
	return sub, nil
}

// resolveDirectOrderID matches tokens that already are numeric provider
// order ids.
func (s *reconciliationService) resolveDirectOrderID(_ context.Context, req VerifyPaymentRequest) (string, error) {
	if numericTokenPattern.MatchString(req.Token) {
		return req.Token, nil
	}
	return "", nil
}

// resolveViaCheckout treats the token as a checkout session id and
// extracts the order id the session carries once payment completes.
func (s *reconciliationService) resolveViaCheckout(ctx context.Context, req VerifyPaymentRequest) (string, error) {
	if req.Token == "" {
		return "", nil
	}
	view, err := s.gateway.GetCheckout(ctx, req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return view.OrderID, nil
}

// resolveFromRecentOrders scans the customer's most recent paid orders
// by email. Orders older than the staleness window are ignored so a
// historic purchase cannot satisfy a fresh checkout, and an expected
// plan narrows the match further.
func (s *reconciliationService) resolveFromRecentOrders(ctx context.Context, req VerifyPaymentRequest) (string, error) {
	if req.Email == "" {
		return "", nil
	}

	cutoff := time.Now().Add(-s.cfg.OrderMaxAge)
	for page := 1; page <= s.cfg.OrderScanPages; page++ {
		orders, err := s.gateway.ListOrdersByEmail(ctx, req.Email, page, s.cfg.OrderPageSize)
		if err != nil {
			return "", err
		}
		for _, order := range orders {
			if order.Status != domain.OrderStatusPaid {
				continue
			}
			if order.CreatedAt.Before(cutoff) {
				// Orders arrive newest first, nothing later can qualify.
				return "", nil
			}
			if req.ExpectedPlan != "" && !s.orderMatchesPlan(order, req.ExpectedPlan) {
				continue
			}
			return order.ID, nil
		}
		if len(orders) < s.cfg.OrderPageSize {
			return "", nil
		}
	}
	return "", nil
}

func (s *reconciliationService) orderMatchesPlan(order domain.OrderView, expected domain.SubscriptionPlan) bool {
	if order.PlanHint != "" {
		if plan, ok := catalog.ParsePlan(order.PlanHint); ok {
			return plan == expected
		}
	}
	if plan, ok := s.catalog.PlanForVariant(order.VariantID); ok {
		return plan == expected
	}
	return false
}

func (s *reconciliationService) applyOrderID(ctx context.Context, userID uuid.UUID, orderID string) (bool, error) {
	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return s.applier.ApplyPaidOrder(ctx, userID, order)
}

// applyFromActiveSubscriptions is the last provider-side strategy: an
// active recurring subscription on the customer's email is applied
// directly when it matches the expected plan.
func (s *reconciliationService) applyFromActiveSubscriptions(ctx context.Context, req VerifyPaymentRequest) bool {
	if req.Email == "" {
		return false
	}

	views, err := s.gateway.ListSubscriptionsByEmail(ctx, req.Email, "active", 1, s.cfg.OrderPageSize)
	if err != nil {
		s.log.Warnw("Active subscription scan failed", "user_id", req.UserID, "error", err)
		return false
	}

	for _, view := range views {
		if req.ExpectedPlan != "" {
			plan, ok := s.catalog.PlanForVariant(view.VariantID)
			if !ok || plan != req.ExpectedPlan {
				continue
			}
		}
		if view.UserID == "" {
			view.UserID = req.UserID.String()
		}
		if err := s.applier.ApplyProviderSubscription(ctx, view); err != nil {
			s.log.Warnw("Could not apply active provider subscription", "subscription_id", view.ID, "error", err)
			continue
		}
		s.log.Infow("Payment verified", "strategy", "active_subscriptions", "user_id", req.UserID, "subscription_id", view.ID)
		return true
	}
	return false
}

var errNotYetPremium = errors.New("subscription not premium yet")

// pollForPremium waits for a concurrent webhook to land a premium
// active row for the user.
func (s *reconciliationService) pollForPremium(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	operation := func() (domain.Subscription, error) {
		sub, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Subscription{}, errNotYetPremium
			}
			return domain.Subscription{}, backoff.Permanent(err)
		}
		if !sub.IsPremiumActive() {
			return domain.Subscription{}, errNotYetPremium
		}
		return sub, nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.PollInterval), uint64(s.cfg.PollAttempts-1)),
		ctx,
	)
	return backoff.RetryWithData(operation, b)
}
