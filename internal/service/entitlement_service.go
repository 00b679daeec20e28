package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/catalog"
	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// EntitlementService answers whether a user may use a gated feature
type EntitlementService interface {
	CheckFeatureAccess(ctx context.Context, userID uuid.UUID, feature domain.Feature, currentCount int) (bool, error)
	Features(ctx context.Context, userID uuid.UUID) (domain.FeatureSet, error)
}

type entitlementService struct {
	applier *TransitionApplier
	catalog *catalog.Catalog
	log     *logger.Logger
}

// NewEntitlementService creates the feature gate evaluator
func NewEntitlementService(applier *TransitionApplier, cat *catalog.Catalog, log *logger.Logger) EntitlementService {
	return &entitlementService{applier: applier, catalog: cat, log: log}
}

// CheckFeatureAccess resolves the user's plan and evaluates the gate.
// For counted features the caller supplies how many the user already
// has; the limit applies to creating one more.
func (s *entitlementService) CheckFeatureAccess(ctx context.Context, userID uuid.UUID, feature domain.Feature, currentCount int) (bool, error) {
	sub, err := s.applier.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}

	plan := sub.Plan
	if !sub.IsPremiumActive() {
		// A lapsed paid plan gates like free.
		plan = domain.PlanFree
	}

	return featureAllowed(s.catalog.Entitlements(plan), feature, currentCount), nil
}

func (s *entitlementService) Features(ctx context.Context, userID uuid.UUID) (domain.FeatureSet, error) {
	sub, err := s.applier.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.FeatureSet{}, err
	}
	plan := sub.Plan
	if !sub.IsPremiumActive() {
		plan = domain.PlanFree
	}
	return s.catalog.Entitlements(plan), nil
}

// featureAllowed is the pure gate decision over a feature set
func featureAllowed(fs domain.FeatureSet, feature domain.Feature, currentCount int) bool {
	switch feature {
	case domain.FeatureRoutines:
		return underLimit(fs.RoutineLimit, currentCount)
	case domain.FeatureCustomProducts:
		return underLimit(fs.CustomProductLimit, currentCount)
	case domain.FeatureCustomMeals:
		return underLimit(fs.CustomMealLimit, currentCount)
	case domain.FeatureAIAdvisor:
		return fs.AIAdvisor
	case domain.FeatureAdvancedStats:
		return fs.AdvancedStats
	case domain.FeatureExport:
		return fs.Export
	default:
		return false
	}
}

func underLimit(limit *int, currentCount int) bool {
	if limit == nil {
		return true
	}
	return currentCount < *limit
}
