package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return wrapMongoErr("insert user", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		return nil, wrapMongoErr("get user", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, wrapMongoErr("get user", err)
	}
	return &user, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return false, wrapMongoErr("count users", err)
	}
	return count > 0, nil
}

// Set applies a $set (and optional $unset) to the user document.
func (r *UserRepository) Set(ctx context.Context, id primitive.ObjectID, set bson.M, unset ...string) error {
	set["updatedAt"] = time.Now()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, name := range unset {
			fields[name] = ""
		}
		update["$unset"] = fields
	}

	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return wrapMongoErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) AddFavorite(ctx context.Context, id primitive.ObjectID, productID string) error {
	return r.updateFavorites(ctx, id, bson.M{"$addToSet": bson.M{"favorites": productID}})
}

func (r *UserRepository) RemoveFavorite(ctx context.Context, id primitive.ObjectID, productID string) error {
	return r.updateFavorites(ctx, id, bson.M{"$pull": bson.M{"favorites": productID}})
}

func (r *UserRepository) updateFavorites(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now()}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return wrapMongoErr("update favorites", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
