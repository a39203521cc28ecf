package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodBanking PaymentMethod = "banking"
	PaymentMethodMomo    PaymentMethod = "momo"
	PaymentMethodZaloPay PaymentMethod = "zalopay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBanking, PaymentMethodMomo, PaymentMethodZaloPay:
		return true
	}
	return false
}

// OrderItem is a snapshot of the product taken when the order was placed.
// It is never re-read from the live product.
type OrderItem struct {
	ProductID string  `bson:"productId" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	UnitPrice float64 `bson:"unitPrice" json:"unitPrice"`
	Quantity  int     `bson:"quantity" json:"quantity"`
}

// ShippingInfo captures the delivery contact and address for an order.
type ShippingInfo struct {
	FullName string `bson:"fullName" json:"fullName" validate:"required"`
	Phone    string `bson:"phone" json:"phone" validate:"required,min=8,max=20"`
	Email    string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Address  string `bson:"address" json:"address" validate:"required"`
	City     string `bson:"city" json:"city" validate:"required"`
	District string `bson:"district,omitempty" json:"district,omitempty"`
	Ward     string `bson:"ward,omitempty" json:"ward,omitempty"`
	Note     string `bson:"note,omitempty" json:"note,omitempty" validate:"max=500"`
}

// Order defines the persisted order document. Number is issued by a monotonic
// counter; Code is its display label.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number        int64              `bson:"number" json:"number"`
	Code          string             `bson:"code" json:"code"`
	UserID        *string            `bson:"userId,omitempty" json:"userId,omitempty"`
	Items         []OrderItem        `bson:"items" json:"items"`
	Subtotal      float64            `bson:"subtotal" json:"subtotal"`
	ShippingFee   float64            `bson:"shippingFee" json:"shippingFee"`
	TotalAmount   float64            `bson:"totalAmount" json:"totalAmount"`
	Shipping      ShippingInfo       `bson:"shipping" json:"shipping"`
	PaymentMethod PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	Status        OrderStatus        `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID != nil && userID != "" && *o.UserID == userID
}
