package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// PostgresSubscriptionRepository stores subscriptions in PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository creates a PostgreSQL-backed repository
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionColumns = `
	id, user_id, external_customer_id, external_subscription_id,
	plan, status, current_period_start, current_period_end,
	cancel_at_period_end, canceled_at, price_cents, currency,
	created_at, updated_at
`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ExternalCustomerID,
		&sub.ExternalSubscriptionID,
		&sub.Plan,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CanceledAt,
		&sub.PriceCents,
		&sub.Currency,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

// GetByUserID returns the user's subscription
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetByExternalSubscriptionID returns the row referencing the provider id
func (r *PostgresSubscriptionRepository) GetByExternalSubscriptionID(ctx context.Context, externalID string) (domain.Subscription, error) {
	if externalID == "" {
		return domain.Subscription{}, ErrInvalidData
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_subscription_id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription by external id: %w", err)
	}

	return sub, nil
}

// Create inserts the subscription. The unique index on user_id makes
// concurrent creates converge: on conflict nothing is written and the
// winning row is read back.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + subscriptionColumns

	created, err := scanSubscription(r.db.QueryRow(ctx, query,
		sub.ID, sub.UserID, sub.ExternalCustomerID, sub.ExternalSubscriptionID,
		sub.Plan, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, sub.PriceCents, sub.Currency,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Another request inserted first; the existing row wins.
			return r.GetByUserID(ctx, sub.UserID)
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	r.log.Debugw("Subscription created", "user_id", sub.UserID, "plan", sub.Plan)
	return created, nil
}

// Update overwrites the stored row, keyed by user id
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	query := `
		UPDATE subscriptions SET
			external_customer_id = $2,
			external_subscription_id = $3,
			plan = $4,
			status = $5,
			current_period_start = $6,
			current_period_end = $7,
			cancel_at_period_end = $8,
			canceled_at = $9,
			price_cents = $10,
			currency = $11,
			updated_at = now()
		WHERE user_id = $1
	`

	res, err := r.db.Exec(ctx, query,
		sub.UserID, sub.ExternalCustomerID, sub.ExternalSubscriptionID,
		sub.Plan, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, sub.PriceCents, sub.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if res.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Subscription updated", "user_id", sub.UserID, "plan", sub.Plan, "status", sub.Status)
	return nil
}
