package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type RefreshTokenRepository struct {
	collection *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{collection: db.Collection(refreshTokensCollection)}
}

func (r *RefreshTokenRepository) Insert(ctx context.Context, token *models.RefreshToken) error {
	res, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return wrapMongoErr("insert refresh token", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		token.ID = id
	}
	return nil
}

func (r *RefreshTokenRepository) FindActive(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.collection.FindOne(ctx, bson.M{"tokenHash": hash, "revoked": false}).Decode(&token)
	if err != nil {
		return nil, wrapMongoErr("get refresh token", err)
	}
	return &token, nil
}

// Revoke marks the token revoked, optionally pointing at its replacement.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": set})
	return wrapMongoErr("revoke refresh token", err)
}

func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"tokenHash": hash, "revoked": false}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return wrapMongoErr("revoke refresh token", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
