package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// WebhookService applies verified provider events to local state.
// Unresolvable or malformed events are logged and dropped so the
// provider never retries them forever; only storage failures surface.
type WebhookService interface {
	ProcessEvent(ctx context.Context, event domain.WebhookEvent) error
}

type webhookService struct {
	applier *TransitionApplier
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewWebhookService creates the webhook event processor
func NewWebhookService(applier *TransitionApplier, m metrics.BillingMetrics, log *logger.Logger) WebhookService {
	return &webhookService{applier: applier, metrics: m, log: log}
}

func (s *webhookService) ProcessEvent(ctx context.Context, event domain.WebhookEvent) error {
	outcome := "applied"
	err := s.dispatch(ctx, event)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPlanUnresolved), errors.Is(err, domain.ErrNotFound):
		// The event references nothing we can act on. Dropping it is
		// deliberate: the provider would otherwise redeliver forever.
		s.log.Warnw("Dropping unresolvable webhook event", "event", event.Name, "error", err)
		outcome = "dropped"
		err = nil
	default:
		outcome = "failed"
	}
	s.metrics.IncWebhookEvent(string(event.Name), outcome)
	return err
}

func (s *webhookService) dispatch(ctx context.Context, event domain.WebhookEvent) error {
	switch event.Name {
	case domain.WebhookEventOrderCreated:
		return s.handleOrderCreated(ctx, event)

	case domain.WebhookEventSubscriptionCreated,
		domain.WebhookEventSubscriptionUpdated,
		domain.WebhookEventSubscriptionResumed,
		domain.WebhookEventSubscriptionUnpaused:
		if event.Subscription == nil {
			return domain.NewNotFoundError("subscription payload", string(event.Name))
		}
		return s.applier.ApplyProviderSubscription(ctx, *event.Subscription)

	case domain.WebhookEventSubscriptionCancelled,
		domain.WebhookEventSubscriptionPaused:
		if event.Subscription == nil {
			return domain.NewNotFoundError("subscription payload", string(event.Name))
		}
		return s.applier.MarkCancelled(ctx, *event.Subscription)

	case domain.WebhookEventSubscriptionExpired:
		if event.Subscription == nil {
			return domain.NewNotFoundError("subscription payload", string(event.Name))
		}
		return s.applier.MarkExpired(ctx, *event.Subscription)

	default:
		s.log.Debugw("Ignoring webhook event", "event", event.Name)
		return nil
	}
}

func (s *webhookService) handleOrderCreated(ctx context.Context, event domain.WebhookEvent) error {
	if event.Order == nil {
		return domain.NewNotFoundError("order payload", string(event.Name))
	}
	if event.Order.UserID == "" {
		return domain.NewNotFoundError("order user id", event.Order.ID)
	}
	userID, err := uuid.Parse(event.Order.UserID)
	if err != nil {
		return domain.NewNotFoundError("order user id", event.Order.ID)
	}
	_, err = s.applier.ApplyPaidOrder(ctx, userID, *event.Order)
	return err
}
