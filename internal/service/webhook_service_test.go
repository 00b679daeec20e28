package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/internal/metrics"
	"github.com/nutrilog/billing-service/internal/repository"
)

func newWebhookFixture(t *testing.T) (*repository.InMemorySubscriptionRepository, WebhookService) {
	t.Helper()
	repo := repository.NewInMemorySubscriptionRepository(testLogger(t))
	applier := newTestApplier(t, repo, &fakeGateway{})
	return repo, NewWebhookService(applier, metrics.NopBillingMetrics(), testLogger(t))
}

func premiumRow(t *testing.T, repo *repository.InMemorySubscriptionRepository, userID uuid.UUID, externalID string) domain.Subscription {
	t.Helper()
	sub, err := repo.Create(context.Background(), domain.NewFreeSubscription(userID))
	require.NoError(t, err)
	sub.Plan = domain.PlanMonthly
	sub.Status = domain.SubscriptionStatusActive
	sub.ExternalSubscriptionID = externalID
	require.NoError(t, repo.Update(context.Background(), sub))
	return sub
}

func TestProcessEventFirstTimeLinkage(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	renewsAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionCreated,
		Subscription: &domain.SubscriptionView{
			ID:         "sub_1",
			Status:     "active",
			CustomerID: "cust_1",
			VariantID:  testVariantMonthly,
			UserID:     userID.String(),
			RenewsAt:   &renewsAt,
			CreatedAt:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanMonthly, sub.Plan)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_1", sub.ExternalSubscriptionID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, renewsAt, *sub.CurrentPeriodEnd)
}

func TestProcessEventRenewalMovesPeriodEnd(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	premiumRow(t, repo, userID, "sub_1")

	renewsAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionUpdated,
		Subscription: &domain.SubscriptionView{
			ID:        "sub_1",
			Status:    "active",
			VariantID: testVariantMonthly,
			RenewsAt:  &renewsAt,
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, renewsAt, *sub.CurrentPeriodEnd)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestProcessEventCancellation(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	premiumRow(t, repo, userID, "sub_1")

	endsAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionCancelled,
		Subscription: &domain.SubscriptionView{
			ID:        "sub_1",
			Status:    "cancelled",
			Cancelled: true,
			EndsAt:    &endsAt,
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, endsAt, *sub.CanceledAt)
	// The plan survives, access runs until the period end.
	assert.Equal(t, domain.PlanMonthly, sub.Plan)
}

func TestProcessEventExpiredResetsToFree(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	premiumRow(t, repo, userID, "sub_1")

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name:         domain.WebhookEventSubscriptionExpired,
		Subscription: &domain.SubscriptionView{ID: "sub_1", Status: "expired"},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, sub.Plan)
	assert.Equal(t, domain.SubscriptionStatusExpired, sub.Status)
	assert.Empty(t, sub.ExternalSubscriptionID)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Nil(t, sub.CurrentPeriodEnd)
}

func TestProcessEventPausedCancelsSubscription(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	premiumRow(t, repo, userID, "sub_1")

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionPaused,
		Subscription: &domain.SubscriptionView{
			ID:        "sub_1",
			Status:    "paused",
			VariantID: testVariantMonthly,
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CanceledAt)
	// The plan survives, same as an explicit cancellation.
	assert.Equal(t, domain.PlanMonthly, sub.Plan)
}

func TestProcessEventUpdateWithPausedStatus(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()
	premiumRow(t, repo, userID, "sub_1")

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionUpdated,
		Subscription: &domain.SubscriptionView{
			ID:        "sub_1",
			Status:    "paused",
			VariantID: testVariantMonthly,
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, sub.Status)
	assert.False(t, sub.IsPremiumActive())
}

func TestProcessEventOrderCreated(t *testing.T) {
	repo, svc := newWebhookFixture(t)
	userID := uuid.New()

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventOrderCreated,
		Order: &domain.OrderView{
			ID:        "42",
			Status:    domain.OrderStatusPaid,
			VariantID: testVariantLifetime,
			UserID:    userID.String(),
			CreatedAt: time.Now(),
		},
	})
	require.NoError(t, err)

	sub, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanLifetime, sub.Plan)
	assert.Nil(t, sub.CurrentPeriodEnd)
}

func TestProcessEventUnknownEventIsIgnored(t *testing.T) {
	repo, svc := newWebhookFixture(t)

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{Name: "license_key_created"})
	require.NoError(t, err)

	_, err = repo.GetByExternalSubscriptionID(context.Background(), "anything")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProcessEventMissingPayloadIsDropped(t *testing.T) {
	_, svc := newWebhookFixture(t)

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionUpdated,
	})
	require.NoError(t, err)
}

func TestProcessEventUnresolvableUserIsDropped(t *testing.T) {
	_, svc := newWebhookFixture(t)

	err := svc.ProcessEvent(context.Background(), domain.WebhookEvent{
		Name: domain.WebhookEventSubscriptionCreated,
		Subscription: &domain.SubscriptionView{
			ID:        "sub_orphan",
			Status:    "active",
			VariantID: testVariantMonthly,
		},
	})
	require.NoError(t, err)
}

func TestStatusMappingTotality(t *testing.T) {
	cases := map[string]domain.SubscriptionStatus{
		"active":     domain.SubscriptionStatusActive,
		"on_trial":   domain.SubscriptionStatusActive,
		"trialing":   domain.SubscriptionStatusActive,
		"cancelled":  domain.SubscriptionStatusCanceled,
		"canceled":   domain.SubscriptionStatusCanceled,
		"past_due":   domain.SubscriptionStatusPastDue,
		"paused":     domain.SubscriptionStatusPastDue,
		"unpaid":     domain.SubscriptionStatusPastDue,
		"incomplete": domain.SubscriptionStatusIncomplete,
		"expired":    domain.SubscriptionStatusExpired,
		"":           domain.SubscriptionStatusExpired,
		"who_knows":  domain.SubscriptionStatusExpired,
	}
	for input, want := range cases {
		assert.Equal(t, want, domain.StatusFromProvider(input), "input %q", input)
	}
}
