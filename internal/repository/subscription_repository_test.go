package repository

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

func newTestRepo(t *testing.T) *InMemorySubscriptionRepository {
	t.Helper()
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return NewInMemorySubscriptionRepository(log)
}

func TestCreateAndGetByUserID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
	require.NoError(t, err)

	got, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.PlanFree, got.Plan)
}

func TestGetByUserIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByUserID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateReturnsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
	require.NoError(t, err)

	second, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateConcurrentSingleRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	const workers = 32
	ids := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			sub, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
			if err == nil {
				ids[i] = sub.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestGetByExternalSubscriptionID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	sub, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
	require.NoError(t, err)
	sub.ExternalSubscriptionID = "sub_77"
	require.NoError(t, repo.Update(ctx, sub))

	got, err := repo.GetByExternalSubscriptionID(ctx, "sub_77")
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)

	_, err = repo.GetByExternalSubscriptionID(ctx, "sub_unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByExternalSubscriptionID(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := repo.Create(ctx, domain.NewFreeSubscription(userID))
	require.NoError(t, err)

	updated := created
	updated.ID = uuid.New() // repository must keep the original id
	updated.Plan = domain.PlanMonthly
	updated.Status = domain.SubscriptionStatusActive
	require.NoError(t, repo.Update(ctx, updated))

	got, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.PlanMonthly, got.Plan)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestUpdateMissingRow(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Update(context.Background(), domain.NewFreeSubscription(uuid.New()))
	assert.ErrorIs(t, err, ErrNotFound)
}
