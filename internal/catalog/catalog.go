package catalog

import (
	"github.com/nutrilog/billing-service/internal/domain"
)

// Free-tier caps
const (
	FreeRoutineLimit       = 3
	FreeCustomProductLimit = 10
	FreeCustomMealLimit    = 10
)

// VariantMapping binds a provider variant id to an internal plan.
// The table is built once at startup from config and never mutated.
type VariantMapping map[string]domain.SubscriptionPlan

// Catalog resolves provider variant ids to plans and supplies per-plan
// entitlements. It holds no mutable state.
type Catalog struct {
	planByVariant VariantMapping
	variantByPlan map[domain.SubscriptionPlan]string
}

// New builds a catalog from a variant-to-plan table
func New(mapping VariantMapping) *Catalog {
	variantByPlan := make(map[domain.SubscriptionPlan]string, len(mapping))
	planByVariant := make(VariantMapping, len(mapping))
	for variant, plan := range mapping {
		planByVariant[variant] = plan
		variantByPlan[plan] = variant
	}
	return &Catalog{
		planByVariant: planByVariant,
		variantByPlan: variantByPlan,
	}
}

// PlanForVariant maps a provider variant id to the internal plan
func (c *Catalog) PlanForVariant(variantID string) (domain.SubscriptionPlan, bool) {
	plan, ok := c.planByVariant[variantID]
	return plan, ok
}

// VariantForPlan maps an internal plan to its provider variant id
func (c *Catalog) VariantForPlan(plan domain.SubscriptionPlan) (string, bool) {
	variant, ok := c.variantByPlan[plan]
	return variant, ok
}

// ParsePlan converts a plan identifier string to a known plan
func ParsePlan(s string) (domain.SubscriptionPlan, bool) {
	switch domain.SubscriptionPlan(s) {
	case domain.PlanFree, domain.PlanMonthly, domain.PlanYearly, domain.PlanLifetime:
		return domain.SubscriptionPlan(s), true
	default:
		return "", false
	}
}

// Entitlements returns the feature table for a plan. Any paid plan gets
// unlimited counts and all boolean features.
func (c *Catalog) Entitlements(plan domain.SubscriptionPlan) domain.FeatureSet {
	if plan.IsPremium() {
		return domain.FeatureSet{
			AIAdvisor:     true,
			AdvancedStats: true,
			Export:        true,
		}
	}

	routines := FreeRoutineLimit
	products := FreeCustomProductLimit
	meals := FreeCustomMealLimit
	return domain.FeatureSet{
		RoutineLimit:       &routines,
		CustomProductLimit: &products,
		CustomMealLimit:    &meals,
	}
}

// PlanView is the client-facing description of a plan
type PlanView struct {
	Plan            domain.SubscriptionPlan `json:"plan"`
	Name            string                  `json:"name"`
	BillingInterval string                  `json:"billing_interval,omitempty"`
	VariantID       string                  `json:"variant_id,omitempty"`
	Features        domain.FeatureSet       `json:"features"`
}

// Plans returns the static list of plans with their features
func (c *Catalog) Plans() []PlanView {
	views := []PlanView{
		{Plan: domain.PlanFree, Name: "Free", Features: c.Entitlements(domain.PlanFree)},
		{Plan: domain.PlanMonthly, Name: "Premium Monthly", BillingInterval: "month"},
		{Plan: domain.PlanYearly, Name: "Premium Yearly", BillingInterval: "year"},
		{Plan: domain.PlanLifetime, Name: "Lifetime"},
	}
	for i := range views {
		if views[i].Plan.IsPremium() {
			views[i].Features = c.Entitlements(views[i].Plan)
			if variant, ok := c.variantByPlan[views[i].Plan]; ok {
				views[i].VariantID = variant
			}
		}
	}
	return views
}
