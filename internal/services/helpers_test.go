package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
)

const (
	buyerID = "65f000000000000000000001"
	otherID = "65f000000000000000000002"
	adminID = "65f000000000000000000003"
)

var (
	buyer = services.Actor{UserID: buyerID, Role: models.RoleUser}
	other = services.Actor{UserID: otherID, Role: models.RoleUser}
	admin = services.Actor{UserID: adminID, Role: models.RoleAdmin}
)

func product(id string, price float64, stock int) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
}

type fixture struct {
	products *repository.MemoryProductStore
	remote   *repository.MemoryCartStore
	local    *repository.MemoryCartStore
	orders   *repository.MemoryOrderStore
	carts    *services.CartService
}

func newFixture(products ...models.Product) *fixture {
	f := &fixture{
		products: repository.NewMemoryProductStore(products...),
		remote:   repository.NewMemoryCartStore(),
		local:    repository.NewMemoryCartStore(),
		orders:   repository.NewMemoryOrderStore(),
	}
	f.carts = services.NewCartService(f.remote, f.local, f.products)
	return f
}

func (f *fixture) orderService(events services.OrderEventPublisher) *services.OrderService {
	return services.NewOrderService(f.orders, f.products, f.carts, repository.NewMemorySequence(), services.DefaultShippingPolicy(), events)
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func lineIDs(view *models.CartView) []string {
	ids := make([]string, 0, len(view.Lines))
	for _, line := range view.Lines {
		ids = append(ids, line.ID)
	}
	return ids
}

func validShipping() models.ShippingInfo {
	return models.ShippingInfo{
		FullName: "Nguyen Van A",
		Phone:    "0901234567",
		Email:    "a@example.com",
		Address:  "1 Le Loi",
		City:     "Ho Chi Minh",
	}
}
