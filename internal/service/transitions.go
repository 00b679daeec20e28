package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/kafka"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// TransitionApplier owns every write to a subscription row. Payment
// verification and webhook processing both funnel through it, so a
// renewal observed by polling and the same renewal delivered as an
// event produce identical state.
type TransitionApplier struct {
	repo     repository.SubscriptionRepository
	gateway  BillingGateway
	catalog  *catalog.Catalog
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	log      *logger.Logger
}

// NewTransitionApplier wires the applier with its collaborators
func NewTransitionApplier(
	repo repository.SubscriptionRepository,
	gateway BillingGateway,
	cat *catalog.Catalog,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *TransitionApplier {
	return &TransitionApplier{
		repo:     repo,
		gateway:  gateway,
		catalog:  cat,
		producer: producer,
		metrics:  m,
		log:      log,
	}
}

// GetOrCreate returns the user's subscription row, creating the default
// free/active record on first access. Concurrent first accesses
// converge on a single row.
func (a *TransitionApplier) GetOrCreate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	sub, err := a.repo.GetByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, err
	}

	created, err := a.repo.Create(ctx, domain.NewFreeSubscription(userID))
	if err != nil {
		return domain.Subscription{}, err
	}
	a.log.Infow("Created default free subscription", "user_id", userID)
	return created, nil
}

// resolvePlan determines the plan an order grants. The plan identifier
// embedded at checkout wins; otherwise the variant mapping decides.
func (a *TransitionApplier) resolvePlan(order domain.OrderView) (domain.SubscriptionPlan, error) {
	if order.PlanHint != "" {
		if plan, ok := catalog.ParsePlan(order.PlanHint); ok && plan.IsPremium() {
			return plan, nil
		}
		a.log.Warnw("Ignoring unparseable plan hint on order", "order_id", order.ID, "plan_hint", order.PlanHint)
	}
	if plan, ok := a.catalog.PlanForVariant(order.VariantID); ok {
		return plan, nil
	}
	return "", domain.ErrPlanUnresolved
}

// ApplyPaidOrder applies a provider order to the user's subscription.
// Unpaid orders are a no-op. The write is a full overwrite of the
// billing fields, which makes re-applying the same order idempotent.
func (a *TransitionApplier) ApplyPaidOrder(ctx context.Context, userID uuid.UUID, order domain.OrderView) (bool, error) {
	if order.Status != domain.OrderStatusPaid {
		a.log.Infow("Skipping order with non-paid status", "order_id", order.ID, "status", order.Status)
		return false, nil
	}

	plan, err := a.resolvePlan(order)
	if err != nil {
		return false, err
	}

	sub, err := a.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	sub.Plan = plan
	sub.Status = domain.SubscriptionStatusActive
	sub.ExternalCustomerID = order.CustomerID
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = nil
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.PriceCents = order.TotalCents
	sub.Currency = order.Currency
	sub.UpdatedAt = now

	if plan == domain.PlanLifetime {
		sub.ExternalSubscriptionID = ""
	} else {
		sub.ExternalSubscriptionID = order.SubscriptionID
		if order.SubscriptionID != "" {
			// Best effort: period dates come from the provider
			// subscription when it is already readable.
			view, err := a.gateway.GetSubscription(ctx, order.SubscriptionID)
			if err != nil {
				a.log.Warnw("Could not load provider subscription for paid order, keeping defaults",
					"order_id", order.ID, "subscription_id", order.SubscriptionID, "error", err)
			} else {
				if !view.CreatedAt.IsZero() {
					sub.CurrentPeriodStart = view.CreatedAt
				}
				sub.CurrentPeriodEnd = view.RenewsAt
				sub.CancelAtPeriodEnd = view.Cancelled
			}
		}
	}

	if err := a.repo.Update(ctx, sub); err != nil {
		return false, err
	}

	a.log.Infow("Activated subscription from paid order", "user_id", userID, "plan", plan, "order_id", order.ID)
	a.metrics.IncLifecycleTransition(string(domain.SubscriptionStatusActive))
	a.publish(ctx, kafka.TopicSubscriptionActivated, &sub)
	return true, nil
}

// ApplyProviderSubscription upserts local state from a provider
// subscription view. The row is located by external subscription id
// first; when no row carries that id yet, the user id from the event
// custom data links it (first event after checkout).
func (a *TransitionApplier) ApplyProviderSubscription(ctx context.Context, view domain.SubscriptionView) error {
	sub, err := a.findRow(ctx, view.ID, view.UserID)
	if err != nil {
		return err
	}

	if plan, ok := a.planForView(view); ok {
		sub.Plan = plan
	} else if !sub.Plan.IsPremium() {
		return domain.ErrPlanUnresolved
	}

	status := domain.StatusFromProvider(view.Status)

	now := time.Now()
	sub.Status = status
	sub.ExternalSubscriptionID = view.ID
	if view.CustomerID != "" {
		sub.ExternalCustomerID = view.CustomerID
	}
	if !view.CreatedAt.IsZero() {
		sub.CurrentPeriodStart = view.CreatedAt
	}
	if view.RenewsAt != nil {
		sub.CurrentPeriodEnd = view.RenewsAt
	} else if view.EndsAt != nil {
		sub.CurrentPeriodEnd = view.EndsAt
	}
	sub.CancelAtPeriodEnd = view.Cancelled
	if view.Cancelled {
		if view.EndsAt != nil {
			sub.CanceledAt = view.EndsAt
		} else {
			sub.CanceledAt = &now
		}
	} else {
		sub.CanceledAt = nil
	}
	sub.UpdatedAt = now

	if err := a.repo.Update(ctx, sub); err != nil {
		return err
	}

	a.log.Infow("Applied provider subscription state", "user_id", sub.UserID, "status", status, "subscription_id", view.ID)
	a.metrics.IncLifecycleTransition(string(status))
	if status == domain.SubscriptionStatusActive {
		a.publish(ctx, kafka.TopicSubscriptionActivated, &sub)
	}
	return nil
}

// MarkCancelled records a provider-side cancellation. Access continues
// until the period end, so the plan is kept.
func (a *TransitionApplier) MarkCancelled(ctx context.Context, view domain.SubscriptionView) error {
	sub, err := a.findRow(ctx, view.ID, view.UserID)
	if err != nil {
		return err
	}

	now := time.Now()
	sub.Status = domain.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = true
	if view.EndsAt != nil {
		sub.CurrentPeriodEnd = view.EndsAt
		sub.CanceledAt = view.EndsAt
	} else {
		sub.CanceledAt = &now
	}
	sub.UpdatedAt = now

	if err := a.repo.Update(ctx, sub); err != nil {
		return err
	}

	a.log.Infow("Marked subscription cancelled", "user_id", sub.UserID, "subscription_id", view.ID)
	a.metrics.IncLifecycleTransition(string(domain.SubscriptionStatusCanceled))
	a.publish(ctx, kafka.TopicSubscriptionCanceled, &sub)
	return nil
}

// MarkExpired ends paid access. The row drops back to the free plan,
// which also clears the external subscription id.
func (a *TransitionApplier) MarkExpired(ctx context.Context, view domain.SubscriptionView) error {
	sub, err := a.findRow(ctx, view.ID, view.UserID)
	if err != nil {
		return err
	}

	now := time.Now()
	sub.Plan = domain.PlanFree
	sub.Status = domain.SubscriptionStatusExpired
	sub.ExternalSubscriptionID = ""
	sub.CurrentPeriodEnd = nil
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = &now
	sub.UpdatedAt = now

	if err := a.repo.Update(ctx, sub); err != nil {
		return err
	}

	a.log.Infow("Marked subscription expired", "user_id", sub.UserID, "subscription_id", view.ID)
	a.metrics.IncLifecycleTransition(string(domain.SubscriptionStatusExpired))
	a.publish(ctx, kafka.TopicSubscriptionExpired, &sub)
	return nil
}

func (a *TransitionApplier) planForView(view domain.SubscriptionView) (domain.SubscriptionPlan, bool) {
	if view.PlanHint != "" {
		if plan, ok := catalog.ParsePlan(view.PlanHint); ok && plan.IsPremium() {
			return plan, true
		}
	}
	if plan, ok := a.catalog.PlanForVariant(view.VariantID); ok {
		return plan, true
	}
	return "", false
}

// findRow locates the subscription row for a provider subscription,
// falling back to the user id embedded in checkout custom data when the
// external id has not been linked yet.
func (a *TransitionApplier) findRow(ctx context.Context, externalID, userIDHint string) (domain.Subscription, error) {
	sub, err := a.repo.GetByExternalSubscriptionID(ctx, externalID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrInvalidData) {
		return domain.Subscription{}, err
	}

	if userIDHint == "" {
		return domain.Subscription{}, domain.NewNotFoundError("subscription", externalID)
	}
	userID, parseErr := uuid.Parse(userIDHint)
	if parseErr != nil {
		return domain.Subscription{}, domain.NewNotFoundError("subscription", externalID)
	}
	return a.GetOrCreate(ctx, userID)
}

// publish sends a lifecycle event. Delivery is best effort: a broker
// failure never rolls back the state transition.
func (a *TransitionApplier) publish(ctx context.Context, topic string, sub *domain.Subscription) {
	if a.producer == nil {
		return
	}
	if err := a.producer.PublishSubscriptionEvent(ctx, topic, sub); err != nil {
		a.log.Warnw("Failed to publish lifecycle event", "topic", topic, "user_id", sub.UserID, "error", err)
	}
}
