package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

const (
	userSubscriptionKeyPrefix = "billing:subscription:user:"
	externalSubKeyPrefix      = "billing:subscription:external:"

	defaultCacheTTL = 5 * time.Minute
)

// RedisCacheRepository caches subscription rows in Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository connects to Redis and returns the cache
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close closes the Redis connection
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription stores the row under both its user and external keys
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	key := userSubscriptionKeyPrefix + sub.UserID.String()
	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	if sub.ExternalSubscriptionID != "" {
		extKey := externalSubKeyPrefix + sub.ExternalSubscriptionID
		if err := r.client.Set(ctx, extKey, data, defaultCacheTTL).Err(); err != nil {
			return fmt.Errorf("failed to cache subscription by external id: %w", err)
		}
	}

	r.log.Debugw("Subscription cached", "user_id", sub.UserID)
	return nil
}

// GetCachedByUserID returns the cached row or nil on miss
func (r *RedisCacheRepository) GetCachedByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.getCached(ctx, userSubscriptionKeyPrefix+userID.String())
}

// GetCachedByExternalID returns the cached row or nil on miss
func (r *RedisCacheRepository) GetCachedByExternalID(ctx context.Context, externalID string) (*domain.Subscription, error) {
	return r.getCached(ctx, externalSubKeyPrefix+externalID)
}

func (r *RedisCacheRepository) getCached(ctx context.Context, key string) (*domain.Subscription, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read subscription cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	return &sub, nil
}

// InvalidateSubscription removes a row from the cache
func (r *RedisCacheRepository) InvalidateSubscription(ctx context.Context, sub *domain.Subscription) error {
	keys := []string{userSubscriptionKeyPrefix + sub.UserID.String()}
	if sub.ExternalSubscriptionID != "" {
		keys = append(keys, externalSubKeyPrefix+sub.ExternalSubscriptionID)
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate subscription cache: %w", err)
	}

	return nil
}
