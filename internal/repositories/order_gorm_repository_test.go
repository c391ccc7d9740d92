package repositories_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(userID string) *models.Order {
	return &models.Order{
		UserID:        userID,
		PaymentMethod: models.PaymentCredit,
		Total:         30,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "P1", Quantity: 2, Price: 10},
			{ProductID: "p2", Name: "P2", Quantity: 1, Price: 10},
		},
	}
}

func TestGORMOrderRepository_CreateAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMOrderRepository(newTestDB(t))

	first := newOrder("u1")
	require.NoError(t, repo.Create(ctx, first))
	second := newOrder("u1")
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newOrder("u2")))

	assert.Greater(t, second.ID, first.ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, got.Quantities())

	mine, err := repo.GetByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMOrderRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMOrderRepository(newTestDB(t))
	o := newOrder("u1")
	require.NoError(t, repo.Create(ctx, o))

	ok, err := repo.TransitionStatus(ctx, o.ID, models.StatusPending, models.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, o.ID, models.StatusPending, models.StatusAccepted)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestGORMOrderRepository_PaymentAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMOrderRepository(newTestDB(t))
	o := newOrder("u1")
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.SetPayment(ctx, o.ID, "cs_1", "https://pay/cs_1"))
	got, err := repo.GetByPaymentID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "https://pay/cs_1", got.PaymentURL)

	_, err = repo.GetByPaymentID(ctx, "cs_other")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.SetPayment(ctx, 999, "x", "y"), repositories.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, o.ID))
	_, err = repo.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, o.ID), repositories.ErrNotFound)
}

func TestGORMStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(newTestDB(t))
	require.NoError(t, store.Products().Create(ctx, &models.Product{ID: "p1", Name: "P1", Price: 10, Stock: 5}))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx repositories.Store) error {
		require.NoError(t, tx.Products().Reserve(ctx, "p1", 3))
		require.NoError(t, tx.Orders().Create(ctx, newOrder("u1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	n, err := store.Orders().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
