package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/services/mocks"
)

func quietPublisher(t *testing.T) *mocks.MockOrderEventPublisher {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockOrderEventPublisher(ctrl)
	pub.EXPECT().PublishOrderEvent(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return pub
}

func fillCart(t *testing.T, f *fixture, owner services.CartOwner, lines map[string]int, order ...string) []string {
	t.Helper()
	var view *models.CartView
	for _, id := range order {
		var err error
		view, err = f.carts.Add(context.Background(), owner, id, lines[id])
		require.NoError(t, err)
	}
	return lineIDs(view)
}

func placeOrder(t *testing.T, f *fixture, svc *services.OrderService) *models.Order {
	t.Helper()
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 1}, "A")
	result, err := svc.Create(context.Background(), buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.NoError(t, err)
	return result.Order
}

func TestCreateOrderTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100000, 10), product("B", 50000, 10))
	svc := f.orderService(quietPublisher(t))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 3, "B": 1}, "A", "B")

	result, err := svc.Create(ctx, buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodBanking,
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, 350000.0, order.Subtotal)
	assert.Equal(t, 30000.0, order.ShippingFee)
	assert.Equal(t, 380000.0, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(1), order.Number)
	assert.Equal(t, "ORD-001", order.Code)
	require.NotNil(t, order.UserID)
	assert.Equal(t, buyerID, *order.UserID)
	assert.Len(t, order.Items, 2)

	assert.Equal(t, 7, f.stock(t, "A"))
	assert.Equal(t, 9, f.stock(t, "B"))

	assert.ElementsMatch(t, ids, result.Cleanup.Removed)
	assert.Empty(t, result.Cleanup.Failed)
	view, err := f.carts.Get(ctx, services.CartOwner{UserID: buyerID})
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestCreateOrderConsumesOnlySelectedLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10), product("B", 200, 10))
	svc := f.orderService(quietPublisher(t))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 1, "B": 2}, "A", "B")

	result, err := svc.Create(ctx, buyer, services.CreateOrderInput{
		LineIDs:       ids[:1],
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, "A", result.Order.Items[0].ProductID)

	view, err := f.carts.Get(ctx, services.CartOwner{UserID: buyerID})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "B", view.Lines[0].ProductID)
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	f := newFixture(product("A", 250001, 10))
	svc := f.orderService(quietPublisher(t))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 2}, "A")

	result, err := svc.Create(context.Background(), buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodMomo,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Order.ShippingFee)
	assert.Equal(t, 500002.0, result.Order.TotalAmount)
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 1}, "A")

	noAddress := validShipping()
	noAddress.Address = "   "

	tests := []struct {
		name   string
		actor  services.Actor
		input  services.CreateOrderInput
		target error
	}{
		{
			name:   "anonymous",
			actor:  services.Actor{},
			input:  services.CreateOrderInput{LineIDs: ids, Shipping: validShipping(), PaymentMethod: models.PaymentMethodCOD},
			target: services.ErrUnauthenticated,
		},
		{
			name:   "missing address",
			actor:  buyer,
			input:  services.CreateOrderInput{LineIDs: ids, Shipping: noAddress, PaymentMethod: models.PaymentMethodCOD},
			target: services.ErrValidation,
		},
		{
			name:   "unknown payment method",
			actor:  buyer,
			input:  services.CreateOrderInput{LineIDs: ids, Shipping: validShipping(), PaymentMethod: "cash"},
			target: services.ErrValidation,
		},
		{
			name:   "no lines",
			actor:  buyer,
			input:  services.CreateOrderInput{Shipping: validShipping(), PaymentMethod: models.PaymentMethodCOD},
			target: services.ErrValidation,
		},
		{
			name:   "unknown line",
			actor:  buyer,
			input:  services.CreateOrderInput{LineIDs: []string{"nope"}, Shipping: validShipping(), PaymentMethod: models.PaymentMethodCOD},
			target: services.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.input)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.Equal(t, 10, f.stock(t, "A"))
	view, err := f.carts.Get(ctx, services.CartOwner{UserID: buyerID})
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
}

func TestCreateOrderFailsWhenStockDroppedSinceAdd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 5))
	svc := f.orderService(quietPublisher(t))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 4}, "A")

	f.products.Put(product("A", 100, 2))

	_, err := svc.Create(ctx, buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	var stockErr *services.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, f.stock(t, "A"))
}

// racingProducts lets another shopper take a product's stock between
// validation and commit.
type racingProducts struct {
	*repository.MemoryProductStore
	steal string
}

func (r racingProducts) DecrementStock(ctx context.Context, id string, qty int) error {
	if id == r.steal {
		p, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		p.Stock = 0
		r.Put(*p)
	}
	return r.MemoryProductStore.DecrementStock(ctx, id, qty)
}

func TestCreateOrderRestoresStockWhenCommitLosesRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 5), product("B", 100, 5))
	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 2, "B": 1}, "A", "B")

	racing := racingProducts{MemoryProductStore: f.products, steal: "B"}
	svc := services.NewOrderService(f.orders, racing, f.carts, repository.NewMemorySequence(), services.DefaultShippingPolicy(), quietPublisher(t))

	_, err := svc.Create(ctx, buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	var stockErr *services.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "B", stockErr.ProductID)
	assert.Equal(t, 0, stockErr.Available)

	assert.Equal(t, 5, f.stock(t, "A"))
	orders, total, err := f.orders.List(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestOrderItemsAreSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100000, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	repriced := product("A", 999999, 9)
	repriced.Name = "Renamed"
	f.products.Put(repriced)

	got, err := svc.Get(ctx, buyer, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 100000.0, got.Items[0].UnitPrice)
	assert.Equal(t, "Product A", got.Items[0].Name)
}

func TestOrderNumbersIncrease(t *testing.T) {
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))

	first := placeOrder(t, f, svc)
	second := placeOrder(t, f, svc)
	assert.Equal(t, "ORD-001", first.Code)
	assert.Equal(t, "ORD-002", second.Code)
}

func TestCreateOrderPublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockOrderEventPublisher(ctrl)
	pub.EXPECT().
		PublishOrderEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event services.OrderEvent) error {
			assert.Equal(t, services.OrderCreated, event.Type)
			assert.Equal(t, "ORD-001", event.Code)
			assert.Equal(t, buyerID, event.UserID)
			return errors.New("broker down")
		})

	f := newFixture(product("A", 100, 10))
	order := placeOrder(t, f, f.orderService(pub))
	assert.Equal(t, "ORD-001", order.Code)
}

func TestCancelByOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)
	assert.Equal(t, 9, f.stock(t, "A"))

	cancelled, err := svc.Cancel(ctx, buyer, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, "A"))

	_, err = svc.Cancel(ctx, buyer, order.ID.Hex())
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Equal(t, 10, f.stock(t, "A"))
}

func TestCancelRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	_, err := svc.Cancel(ctx, other, order.Code)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = svc.Cancel(ctx, services.Actor{}, order.Code)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = svc.Transition(ctx, admin, order.Code, models.OrderStatusShipped)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, buyer, order.Code)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	got, err := svc.Get(ctx, buyer, order.Code)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
}

func TestAdminCancelsProcessingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	_, err := svc.Transition(ctx, admin, order.Code, models.OrderStatusProcessing)
	require.NoError(t, err)

	got, err := svc.Transition(ctx, admin, order.Code, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, 10, f.stock(t, "A"))
}

func TestTransitionRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	_, err := svc.Transition(ctx, buyer, order.Code, models.OrderStatusProcessing)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = svc.Transition(ctx, admin, order.Code, "lost")
	assert.ErrorIs(t, err, services.ErrValidation)

	got, err := svc.Transition(ctx, admin, order.Code, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	_, err = svc.Transition(ctx, admin, order.Code, models.OrderStatusShipped)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = svc.Transition(ctx, admin, "ORD-999", models.OrderStatusShipped)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	_, err := svc.UpdatePaymentStatus(ctx, buyer, order.Code, models.PaymentStatusCompleted)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = svc.UpdatePaymentStatus(ctx, admin, order.Code, models.PaymentStatusRefunded)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	got, err := svc.UpdatePaymentStatus(ctx, admin, order.Code, models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.PaymentStatus)

	got, err = svc.UpdatePaymentStatus(ctx, admin, order.Code, models.PaymentStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, got.PaymentStatus)
}

func TestGetAndListVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	svc := f.orderService(quietPublisher(t))
	order := placeOrder(t, f, svc)

	_, err := svc.Get(ctx, other, order.Code)
	assert.ErrorIs(t, err, services.ErrForbidden)

	got, err := svc.Get(ctx, admin, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, order.Code, got.Code)

	mine, total, err := svc.ListMine(ctx, buyer, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, mine, 1)

	theirs, total, err := svc.ListMine(ctx, other, repository.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, theirs)

	_, _, err = svc.ListAll(ctx, buyer, repository.OrderFilter{})
	assert.ErrorIs(t, err, services.ErrForbidden)

	all, total, err := svc.ListAll(ctx, admin, repository.OrderFilter{Status: models.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, all, 1)
}

// scriptedSequence hands out numbers in a fixed order, as a counter that lost
// its state would.
type scriptedSequence struct {
	mu     sync.Mutex
	values []int64
}

func (s *scriptedSequence) Next(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0, errors.New("sequence exhausted")
	}
	next := s.values[0]
	s.values = s.values[1:]
	return next, nil
}

func TestCreateOrderSkipsNumberAlreadyTaken(t *testing.T) {
	f := newFixture(product("A", 100, 10))
	seq := &scriptedSequence{values: []int64{1, 1, 2}}
	svc := services.NewOrderService(f.orders, f.products, f.carts, seq, services.DefaultShippingPolicy(), quietPublisher(t))

	first := placeOrder(t, f, svc)
	assert.Equal(t, "ORD-001", first.Code)

	second := placeOrder(t, f, svc)
	assert.Equal(t, int64(2), second.Number)
	assert.Equal(t, "ORD-002", second.Code)
	assert.Equal(t, 8, f.stock(t, "A"))
}

func TestCreateOrderRestoresStockWhenNumbersRunOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(product("A", 100, 10))
	seq := &scriptedSequence{values: []int64{1, 1, 1, 1}}
	svc := services.NewOrderService(f.orders, f.products, f.carts, seq, services.DefaultShippingPolicy(), quietPublisher(t))
	placeOrder(t, f, svc)

	ids := fillCart(t, f, services.CartOwner{UserID: buyerID}, map[string]int{"A": 2}, "A")
	_, err := svc.Create(ctx, buyer, services.CreateOrderInput{
		LineIDs:       ids,
		Shipping:      validShipping(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, 9, f.stock(t, "A"))
}

// deadlineProducts fails stock writes once the caller's context is done, as
// the database driver does.
type deadlineProducts struct {
	*repository.MemoryProductStore
}

func (p deadlineProducts) IncrementStock(ctx context.Context, id string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.MemoryProductStore.IncrementStock(ctx, id, qty)
}

func TestCancelRestoresStockWhenPublisherStalls(t *testing.T) {
	f := newFixture(product("A", 100, 10))
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockOrderEventPublisher(ctrl)
	pub.EXPECT().PublishOrderEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event services.OrderEvent) error {
			if event.Type != services.OrderStatusChanged {
				return nil
			}
			<-ctx.Done()
			return ctx.Err()
		}).AnyTimes()

	svc := services.NewOrderService(f.orders, deadlineProducts{f.products}, f.carts, repository.NewMemorySequence(), services.DefaultShippingPolicy(), pub)
	svc.SetPublishTimeout(200 * time.Millisecond)
	order := placeOrder(t, f, svc)
	require.Equal(t, 9, f.stock(t, "A"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cancelled, err := svc.Cancel(ctx, buyer, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, "A"))
}

func TestCancelRestoresStockAfterClientGoesAway(t *testing.T) {
	f := newFixture(product("A", 100, 10))
	svc := services.NewOrderService(f.orders, deadlineProducts{f.products}, f.carts, repository.NewMemorySequence(), services.DefaultShippingPolicy(), quietPublisher(t))
	order := placeOrder(t, f, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Cancel(ctx, buyer, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, "A"))
}
