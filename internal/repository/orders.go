package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type OrderFilter struct {
	UserID string
	Status models.OrderStatus
	Page
}

type OrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{collection: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Insert(ctx context.Context, order *models.Order) error {
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return wrapMongoErr("insert order", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

// Find looks an order up by its hex id or by its display code.
func (r *OrderRepository) Find(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.TrimSpace(ref)
	filter := bson.M{"code": strings.ToUpper(ref)}
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		filter = bson.M{"_id": id}
	}

	var order models.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, wrapMongoErr("get order", err)
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapMongoErr("count orders", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetSkip(f.skip()).SetLimit(f.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, wrapMongoErr("list orders", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves the order from one status to another only if it is still
// in the expected status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error {
	return r.compareAndSet(ctx, id, "status", string(from), string(to), at)
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, from, to models.PaymentStatus, at time.Time) error {
	return r.compareAndSet(ctx, id, "paymentStatus", string(from), string(to), at)
}

func (r *OrderRepository) compareAndSet(ctx context.Context, id primitive.ObjectID, field, from, to string, at time.Time) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, field: from},
		bson.M{"$set": bson.M{field: to, "updatedAt": at}},
	)
	if err != nil {
		return wrapMongoErr("update order "+field, err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}
