package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// MongoCartStore persists authenticated carts, one document per user.
type MongoCartStore struct {
	collection *mongo.Collection
}

func NewMongoCartStore(db *mongo.Database) *MongoCartStore {
	return &MongoCartStore{collection: db.Collection(cartsCollection)}
}

func (s *MongoCartStore) Load(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	if err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart); err != nil {
		return nil, wrapMongoErr("get cart", err)
	}
	return &cart, nil
}

// Save replaces the cart lines, creating the cart on first write.
func (s *MongoCartStore) Save(ctx context.Context, cart *models.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	lines := cart.Lines
	if lines == nil {
		lines = []models.CartLine{}
	}

	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"userId": cart.UserID},
		bson.M{
			"$set": bson.M{
				"lines":     lines,
				"updatedAt": cart.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"userId":    cart.UserID,
				"createdAt": cart.CreatedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	return wrapMongoErr("upsert cart", err)
}

func (s *MongoCartStore) Delete(ctx context.Context, userID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"userId": userID})
	return wrapMongoErr("delete cart", err)
}
