package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan is the paid tier of a user account
type SubscriptionPlan string

const (
	PlanFree     SubscriptionPlan = "free"
	PlanMonthly  SubscriptionPlan = "monthly"
	PlanYearly   SubscriptionPlan = "yearly"
	PlanLifetime SubscriptionPlan = "lifetime"
)

// IsPremium reports whether the plan is a paid tier
func (p SubscriptionPlan) IsPremium() bool {
	return p == PlanMonthly || p == PlanYearly || p == PlanLifetime
}

// SubscriptionStatus is the billing lifecycle state, independent of plan
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusExpired    SubscriptionStatus = "expired"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrial      SubscriptionStatus = "trial"
)

// StatusFromProvider converts a billing provider status string into an
// internal status. The mapping is total: every input yields exactly one
// internal status, and unknown values are treated as expired.
func StatusFromProvider(providerStatus string) SubscriptionStatus {
	switch providerStatus {
	case "active", "on_trial", "trialing":
		return SubscriptionStatusActive
	case "cancelled", "canceled":
		return SubscriptionStatusCanceled
	case "past_due", "paused", "unpaid":
		return SubscriptionStatusPastDue
	case "incomplete":
		return SubscriptionStatusIncomplete
	default:
		return SubscriptionStatusExpired
	}
}

// Subscription is the single billing record a user owns.
// Invariants: PlanFree implies no external subscription id;
// PlanLifetime implies CurrentPeriodEnd == nil and !CancelAtPeriodEnd.
// A row is created lazily with PlanFree/Active on first access and is
// never hard-deleted; terminal states stay as rows.
type Subscription struct {
	ID                     uuid.UUID          `json:"id"`
	UserID                 uuid.UUID          `json:"user_id"`
	ExternalCustomerID     string             `json:"external_customer_id,omitempty"`
	ExternalSubscriptionID string             `json:"external_subscription_id,omitempty"`
	Plan                   SubscriptionPlan   `json:"plan"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodStart     time.Time          `json:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CanceledAt             *time.Time         `json:"canceled_at,omitempty"`
	PriceCents             int64              `json:"price_cents"`
	Currency               string             `json:"currency,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// IsPremiumActive reports whether the subscription currently grants paid access
func (s *Subscription) IsPremiumActive() bool {
	return s.Plan.IsPremium() && s.Status == SubscriptionStatusActive
}

// DaysRemainingAt returns the whole days left in the current period at a
// given time, rounded up. Zero when the period end is unset (lifetime) or past.
func (s *Subscription) DaysRemainingAt(now time.Time) int {
	if s.CurrentPeriodEnd == nil {
		return 0
	}
	remaining := s.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining.Hours() / 24)
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// NewFreeSubscription builds the lazily-created default record for a user
func NewFreeSubscription(userID uuid.UUID) Subscription {
	now := time.Now()
	return Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		Plan:               PlanFree,
		Status:             SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Feature is a capability gated by the current plan
type Feature string

const (
	FeatureRoutines       Feature = "routines"
	FeatureCustomProducts Feature = "custom_products"
	FeatureCustomMeals    Feature = "custom_meals"
	FeatureAIAdvisor      Feature = "ai_advisor"
	FeatureAdvancedStats  Feature = "advanced_stats"
	FeatureExport         Feature = "export"
)

// FeatureSet describes what a plan entitles a user to.
// A nil limit means unlimited.
type FeatureSet struct {
	RoutineLimit       *int `json:"routine_limit,omitempty"`
	CustomProductLimit *int `json:"custom_product_limit,omitempty"`
	CustomMealLimit    *int `json:"custom_meal_limit,omitempty"`
	AIAdvisor          bool `json:"ai_advisor"`
	AdvancedStats      bool `json:"advanced_stats"`
	Export             bool `json:"export"`
}
