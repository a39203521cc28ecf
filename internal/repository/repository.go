package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrStockConflict is returned when a conditional stock decrement matched nothing.
	ErrStockConflict = errors.New("stock no longer sufficient")
	// ErrStatusConflict is returned when a compare-and-set status update lost the race.
	ErrStatusConflict = errors.New("status changed concurrently")
	ErrDuplicate      = errors.New("duplicate key")
)

const (
	productsCollection      = "products"
	categoriesCollection    = "categories"
	cartsCollection         = "carts"
	ordersCollection        = "orders"
	usersCollection         = "users"
	refreshTokensCollection = "refresh_tokens"
	countersCollection      = "counters"
)

// Page describes 1-based pagination. A zero Limit means no limit.
type Page struct {
	Page  int64
	Limit int64
}

func (p Page) skip() int64 {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func wrapMongoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
