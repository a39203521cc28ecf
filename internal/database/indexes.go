package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the storefront collections rely on. Each
// failure is logged and the first one is returned.
func EnsureIndexes(db *mongo.Database) error {
	var firstErr error
	for _, ensure := range []func(*mongo.Database) error{
		EnsureProductIndexes,
		EnsureCategoryIndexes,
		EnsureUserIndexes,
		EnsureCartIndexes,
		EnsureOrderIndexes,
	} {
		if err := ensure(db); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("products").Indexes()

	categoryIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "categoryId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
		Options: options.Index().SetName("category_createdAt"),
	}

	log.Println("EnsureProductIndexes: creating category_createdAt index")
	if _, err := indexes.CreateOne(ctx, categoryIndex); err != nil {
		log.Println("EnsureProductIndexes: category index error:", err)
		return err
	}
	log.Println("EnsureProductIndexes: category_createdAt index created")
	return nil
}

func EnsureCategoryIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nameIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("name_unique").SetUnique(true),
	}

	log.Println("EnsureCategoryIndexes: creating name_unique index")
	if _, err := db.Collection("categories").Indexes().CreateOne(ctx, nameIndex); err != nil {
		log.Println("EnsureCategoryIndexes: name index error:", err)
		return err
	}
	return nil
}

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("users").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureUserIndexes: creating email_unique index")
	if _, err := indexes.CreateOne(ctx, emailIndex); err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureUserIndexes: email_unique index created")
	return nil
}

// EnsureCartIndexes enforces one cart per user.
func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("carts").Indexes()

	userIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().
			SetName("userId_unique").
			SetUnique(true),
	}

	log.Println("EnsureCartIndexes: creating userId_unique index")
	if _, err := indexes.CreateOne(ctx, userIndex); err != nil {
		log.Println("EnsureCartIndexes: userId index error:", err)
		return err
	}
	log.Println("EnsureCartIndexes: userId_unique index created")
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetName("number_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("code_index"),
		},
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	if _, err := indexes.CreateMany(ctx, models); err != nil {
		log.Println("EnsureOrderIndexes: order index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}
