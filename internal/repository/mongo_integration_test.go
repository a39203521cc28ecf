package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in -short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := database.Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("storefront_test")
	require.NoError(t, database.EnsureIndexes(db))
	return db
}

func TestMongoStores(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seq := NewMongoSequence(db)
	products := NewProductRepository(db, seq)

	t.Run("product ids are sequential", func(t *testing.T) {
		a := &models.Product{Name: "A", Price: 100, Stock: 5, IsActive: true}
		b := &models.Product{Name: "B", Price: 200, Stock: 5, IsActive: true}
		require.NoError(t, products.Create(ctx, a))
		require.NoError(t, products.Create(ctx, b))
		assert.Equal(t, "1", a.ID)
		assert.Equal(t, "2", b.ID)

		found, err := products.GetMany(ctx, []string{"1", "2", "404"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("conditional decrement never oversells", func(t *testing.T) {
		p := &models.Product{Name: "Hot item", Price: 10, Stock: 5, IsActive: true}
		require.NoError(t, products.Create(ctx, p))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := products.DecrementStock(ctx, p.ID, 1); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, ErrStockConflict)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, succeeded)
		got, err := products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Stock)
		assert.False(t, got.InStock)

		require.NoError(t, products.IncrementStock(ctx, p.ID, 2))
		got, err = products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Stock)
	})

	t.Run("soft delete hides products", func(t *testing.T) {
		p := &models.Product{Name: "Gone", Price: 10, Stock: 1, IsActive: true}
		require.NoError(t, products.Create(ctx, p))
		require.NoError(t, products.SoftDelete(ctx, p.ID))

		_, err := products.Get(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, products.DecrementStock(ctx, p.ID, 1), ErrStockConflict)
	})

	t.Run("search text matches literally", func(t *testing.T) {
		p := &models.Product{Name: "Tea (green)", Price: 10, Stock: 1, IsActive: true}
		require.NoError(t, products.Create(ctx, p))

		found, total, err := products.List(ctx, ProductFilter{Search: "(green)"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, found, 1)
		assert.Equal(t, p.ID, found[0].ID)

		_, _, err = products.List(ctx, ProductFilter{Search: "(["})
		assert.NoError(t, err)
	})

	t.Run("category names are unique", func(t *testing.T) {
		categories := NewCategoryRepository(db)
		require.NoError(t, categories.Create(ctx, &models.Category{Name: "Fruit", IsActive: true}))
		err := categories.Create(ctx, &models.Category{Name: "Fruit", IsActive: true})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("carts upsert per user", func(t *testing.T) {
		carts := NewMongoCartStore(db)
		_, err := carts.Load(ctx, "user-1")
		assert.ErrorIs(t, err, ErrNotFound)

		cart := &models.Cart{UserID: "user-1", Lines: []models.CartLine{{ID: "l1", ProductID: "1", Quantity: 2}}}
		require.NoError(t, carts.Save(ctx, cart))
		cart.Lines = append(cart.Lines, models.CartLine{ID: "l2", ProductID: "2", Quantity: 1})
		require.NoError(t, carts.Save(ctx, cart))

		loaded, err := carts.Load(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, loaded.Lines, 2)

		count, err := db.Collection(cartsCollection).CountDocuments(ctx, bson.M{"userId": "user-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		require.NoError(t, carts.Delete(ctx, "user-1"))
		_, err = carts.Load(ctx, "user-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("order status is compare-and-set", func(t *testing.T) {
		orders := NewOrderRepository(db)
		userID := "user-1"
		order := &models.Order{
			Number:        1,
			Code:          "ORD-001",
			UserID:        &userID,
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			CreatedAt:     time.Now(),
		}
		require.NoError(t, orders.Insert(ctx, order))
		require.False(t, order.ID.IsZero())

		byCode, err := orders.Find(ctx, "ord-001")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byCode.ID)

		now := time.Now()
		require.NoError(t, orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled, now))
		err = orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled, now)
		assert.ErrorIs(t, err, ErrStatusConflict)

		list, total, err := orders.List(ctx, OrderFilter{UserID: userID, Status: models.OrderStatusCancelled})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, list, 1)
	})
}
