package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// CachedSubscriptionRepository decorates a SubscriptionRepository with a
// Redis read-through cache. Cache failures degrade to the base store and
// are never surfaced to callers.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository wraps a repository with caching
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByUserID reads the cache first, then the base store
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	cached, err := r.cache.GetCachedByUserID(ctx, userID)
	if err != nil {
		r.log.Warnw("Subscription cache read failed", "error", err, "user_id", userID)
	}
	if cached != nil {
		return *cached, nil
	}

	sub, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, &sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetch", "error", err, "user_id", userID)
	}

	return sub, nil
}

// GetByExternalSubscriptionID reads the cache first, then the base store
func (r *CachedSubscriptionRepository) GetByExternalSubscriptionID(ctx context.Context, externalID string) (domain.Subscription, error) {
	cached, err := r.cache.GetCachedByExternalID(ctx, externalID)
	if err != nil {
		r.log.Warnw("Subscription cache read failed", "error", err, "external_id", externalID)
	}
	if cached != nil {
		return *cached, nil
	}

	sub, err := r.repo.GetByExternalSubscriptionID(ctx, externalID)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, &sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetch", "error", err, "external_id", externalID)
	}

	return sub, nil
}

// Create writes through to the base store and caches the winning row
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	created, err := r.repo.Create(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, &created); err != nil {
		r.log.Warnw("Failed to cache subscription after create", "error", err, "user_id", created.UserID)
	}

	return created, nil
}

// Update writes through and refreshes the cache
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}

	// Invalidate before re-caching so a stale external-id key cannot
	// outlive a re-link to a different provider subscription.
	if err := r.cache.InvalidateSubscription(ctx, &sub); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "user_id", sub.UserID)
	}
	if err := r.cache.CacheSubscription(ctx, &sub); err != nil {
		r.log.Warnw("Failed to cache subscription after update", "error", err, "user_id", sub.UserID)
	}

	return nil
}
