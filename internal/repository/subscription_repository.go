package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// SubscriptionRepository persists the one-per-user subscription record
type SubscriptionRepository interface {
	// GetByUserID returns the user's subscription, ErrNotFound when absent
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)

	// GetByExternalSubscriptionID looks a row up by the provider's subscription id
	GetByExternalSubscriptionID(ctx context.Context, externalID string) (domain.Subscription, error)

	// Create inserts the subscription unless the user already has one, in
	// which case the existing row is returned. Concurrent creates for the
	// same user converge on a single row.
	Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)

	// Update overwrites the stored row
	Update(ctx context.Context, sub domain.Subscription) error
}

// InMemorySubscriptionRepository keeps subscriptions in a map, used in tests
type InMemorySubscriptionRepository struct {
	byUser map[uuid.UUID]domain.Subscription
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemorySubscriptionRepository creates an empty in-memory repository
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		byUser: make(map[uuid.UUID]domain.Subscription),
		log:    log,
	}
}

// GetByUserID returns the user's subscription
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.byUser[userID]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return sub, nil
}

// GetByExternalSubscriptionID returns the row referencing the provider id
func (r *InMemorySubscriptionRepository) GetByExternalSubscriptionID(ctx context.Context, externalID string) (domain.Subscription, error) {
	if externalID == "" {
		return domain.Subscription{}, ErrInvalidData
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, sub := range r.byUser {
		if sub.ExternalSubscriptionID == externalID {
			return sub, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// Create inserts the subscription, returning the existing row when the
// user already has one
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, exists := r.byUser[sub.UserID]; exists {
		return existing, nil
	}

	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	r.byUser[sub.UserID] = sub

	return sub, nil
}

// Update overwrites an existing subscription
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.byUser[sub.UserID]
	if !exists {
		return ErrNotFound
	}

	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now()
	r.byUser[sub.UserID] = sub

	return nil
}
