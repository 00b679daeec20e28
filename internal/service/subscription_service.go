package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/repository"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// SubscriptionService is the user-facing subscription surface
type SubscriptionService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (SubscriptionStatusView, error)
	CreateCheckout(ctx context.Context, req CheckoutServiceRequest) (domain.CheckoutSession, error)
	Cancel(ctx context.Context, userID uuid.UUID, immediately bool) (domain.Subscription, error)
	Reactivate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)
	GetPortalURL(ctx context.Context, userID uuid.UUID) (string, error)
}

// SubscriptionStatusView is the read model clients render
type SubscriptionStatusView struct {
	Plan              domain.SubscriptionPlan   `json:"plan"`
	Status            domain.SubscriptionStatus `json:"status"`
	Premium           bool                      `json:"premium"`
	CancelAtPeriodEnd bool                      `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time                `json:"current_period_end,omitempty"`
	DaysRemaining     int                       `json:"days_remaining"`
	Features          domain.FeatureSet         `json:"features"`
}

// CheckoutServiceRequest carries what is needed to open a hosted checkout
type CheckoutServiceRequest struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Plan   domain.SubscriptionPlan
}

type subscriptionService struct {
	applier    *TransitionApplier
	repo       repository.SubscriptionRepository
	gateway    BillingGateway
	catalog    *catalog.Catalog
	metrics    metrics.BillingMetrics
	log        *logger.Logger
	successURL string
}

// NewSubscriptionService creates the subscription service
func NewSubscriptionService(
	applier *TransitionApplier,
	repo repository.SubscriptionRepository,
	gateway BillingGateway,
	cat *catalog.Catalog,
	m metrics.BillingMetrics,
	log *logger.Logger,
	successURL string,
) SubscriptionService {
	return &subscriptionService{
		applier:    applier,
		repo:       repo,
		gateway:    gateway,
		catalog:    cat,
		metrics:    m,
		log:        log,
		successURL: successURL,
	}
}

func (s *subscriptionService) GetOrCreate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	return s.applier.GetOrCreate(ctx, userID)
}

func (s *subscriptionService) GetStatus(ctx context.Context, userID uuid.UUID) (SubscriptionStatusView, error) {
	sub, err := s.applier.GetOrCreate(ctx, userID)
	if err != nil {
		return SubscriptionStatusView{}, err
	}

	return SubscriptionStatusView{
		Plan:              sub.Plan,
		Status:            sub.Status,
		Premium:           sub.IsPremiumActive(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		DaysRemaining:     sub.DaysRemainingAt(time.Now()),
		Features:          s.catalog.Entitlements(sub.Plan),
	}, nil
}

func (s *subscriptionService) CreateCheckout(ctx context.Context, req CheckoutServiceRequest) (domain.CheckoutSession, error) {
	if !req.Plan.IsPremium() {
		return domain.CheckoutSession{}, domain.ErrInvalidRequest
	}

	variantID, ok := s.catalog.VariantForPlan(req.Plan)
	if !ok {
		s.log.Errorw("No provider variant configured for plan", "plan", req.Plan)
		return domain.CheckoutSession{}, domain.ErrMissingVariant
	}

	session, err := s.gateway.CreateCheckout(ctx, domain.CheckoutRequest{
		VariantID:  variantID,
		UserID:     req.UserID.String(),
		PlanID:     string(req.Plan),
		Email:      req.Email,
		Name:       req.Name,
		SuccessURL: s.successURL,
	})
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	s.log.Infow("Created checkout session", "user_id", req.UserID, "plan", req.Plan, "checkout_id", session.ID)
	s.metrics.IncCheckoutCreated(string(req.Plan))
	return session, nil
}

// Cancel schedules a cancellation at the period end, or with
// immediately set, ends paid access locally right away. Free and
// lifetime plans have nothing to cancel.
func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID, immediately bool) (domain.Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.NewNotFoundError("subscription", userID.String())
		}
		return domain.Subscription{}, err
	}

	if !sub.Plan.IsPremium() || sub.Plan == domain.PlanLifetime {
		return domain.Subscription{}, domain.ErrNotCancelable
	}
	if sub.ExternalSubscriptionID == "" {
		return domain.Subscription{}, domain.ErrNotCancelable
	}

	if err := s.gateway.CancelSubscription(ctx, sub.ExternalSubscriptionID); err != nil {
		return domain.Subscription{}, err
	}

	now := time.Now()
	sub.CancelAtPeriodEnd = true
	if immediately {
		sub.Status = domain.SubscriptionStatusCanceled
		sub.CanceledAt = &now
	}
	sub.UpdatedAt = now

	if err := s.repo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}

	s.log.Infow("Cancelled subscription", "user_id", userID, "immediately", immediately)
	s.metrics.IncLifecycleTransition(string(domain.SubscriptionStatusCanceled))
	return sub, nil
}

// Reactivate undoes a pending cancellation before the period ends
func (s *subscriptionService) Reactivate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.NewNotFoundError("subscription", userID.String())
		}
		return domain.Subscription{}, err
	}

	if !sub.CancelAtPeriodEnd || sub.ExternalSubscriptionID == "" {
		return domain.Subscription{}, domain.ErrInvalidRequest
	}

	if err := s.gateway.ReactivateSubscription(ctx, sub.ExternalSubscriptionID); err != nil {
		return domain.Subscription{}, err
	}

	sub.Status = domain.SubscriptionStatusActive
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}

	s.log.Infow("Reactivated subscription", "user_id", userID)
	s.metrics.IncLifecycleTransition(string(domain.SubscriptionStatusActive))
	return sub, nil
}

// GetPortalURL returns the provider's self-service portal link. Users
// without a recurring subscription have no portal.
func (s *subscriptionService) GetPortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.NewNotFoundError("subscription", userID.String())
		}
		return "", err
	}
	if sub.ExternalSubscriptionID == "" {
		return "", domain.NewNotFoundError("billing portal", userID.String())
	}
	return s.gateway.GetPortalURL(ctx, sub.ExternalSubscriptionID)
}
