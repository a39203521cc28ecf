package models

import "time"

// CartLine pairs a product with a quantity inside a cart.
type CartLine struct {
	ID        string    `bson:"id" json:"id"`
	ProductID string    `bson:"productId" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"addedAt" json:"addedAt"`
}

// Cart is owned by exactly one user, or by an anonymous session when UserID is empty.
type Cart struct {
	UserID    string     `bson:"userId,omitempty" json:"userId,omitempty"`
	SessionID string     `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// CartLineView is a cart line with its product resolved for display.
type CartLineView struct {
	CartLine
	Product   *Product `json:"product,omitempty"`
	LineTotal float64  `json:"lineTotal"`
}

type CartView struct {
	Lines     []CartLineView `json:"lines"`
	ItemCount int            `json:"itemCount"`
	Subtotal  float64        `json:"subtotal"`
}
