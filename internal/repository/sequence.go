package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sequence issues monotonically increasing numbers per name.
type Sequence interface {
	Next(ctx context.Context, name string) (int64, error)
}

// MongoSequence keeps counters in a single collection, one document per name.
// Order numbers come from here so they survive cache loss.
type MongoSequence struct {
	collection *mongo.Collection
}

func NewMongoSequence(db *mongo.Database) *MongoSequence {
	return &MongoSequence{collection: db.Collection(countersCollection)}
}

func (s *MongoSequence) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return counter.Value, nil
}
