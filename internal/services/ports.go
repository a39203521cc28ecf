package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/repository"
)

// ProductStore is the slice of the product repository the cart and order flows use.
type ProductStore interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}

// CartPersistence stores whole carts. The remote backing is keyed by user id,
// the local one by anonymous session id.
type CartPersistence interface {
	Load(ctx context.Context, key string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, key string) error
}

type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	Find(ctx context.Context, ref string) (*models.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, from, to models.PaymentStatus, at time.Time) error
}

type OrderEventType string

const (
	OrderCreated              OrderEventType = "order.created"
	OrderStatusChanged        OrderEventType = "order.status_changed"
	OrderPaymentStatusChanged OrderEventType = "order.payment_status_changed"
)

type OrderEvent struct {
	Type          OrderEventType       `json:"type"`
	OrderID       string               `json:"orderId"`
	Code          string               `json:"code"`
	UserID        string               `json:"userId,omitempty"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	TotalAmount   float64              `json:"totalAmount"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

//go:generate mockgen -destination=mocks/mock_events.go -package=mocks storefront/internal/services OrderEventPublisher

// OrderEventPublisher receives order lifecycle events after they are committed.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

// Actor is the identity performing an operation.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Role == models.RoleAdmin
}
