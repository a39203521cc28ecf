package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type ProductFilter struct {
	CategoryID      string
	Search          string
	IncludeInactive bool
	Page
}

type ProductRepository struct {
	collection *mongo.Collection
	seq        Sequence
}

func NewProductRepository(db *mongo.Database, seq Sequence) *ProductRepository {
	return &ProductRepository{
		collection: db.Collection(productsCollection),
		seq:        seq,
	}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.collection.FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err != nil {
		return nil, wrapMongoErr("get product", err)
	}
	product.InStock = product.Stock > 0
	return &product, nil
}

// GetMany resolves several products in one round trip. Missing ids are absent
// from the result.
func (r *ProductRepository) GetMany(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"_id":       bson.M{"$in": ids},
		"isDeleted": bson.M{"$ne": true},
	})
	if err != nil {
		return nil, wrapMongoErr("list products", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var product models.Product
		if err := cursor.Decode(&product); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		product.InStock = product.Stock > 0
		out[product.ID] = product
	}
	return out, cursor.Err()
}

// productQuery builds the list filter. Search text matches literally.
func productQuery(f ProductFilter) bson.M {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}
	if !f.IncludeInactive {
		filter["isActive"] = bson.M{"$ne": false}
	}
	if category := strings.TrimSpace(f.CategoryID); category != "" {
		filter["categoryId"] = category
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	return filter
}

func (r *ProductRepository) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	filter := productQuery(f)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapMongoErr("count products", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetSkip(f.skip()).SetLimit(f.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, wrapMongoErr("list products", err)
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	for i := range products {
		products[i].InStock = products[i].Stock > 0
	}
	return products, total, nil
}

// Create assigns the next sequential id and inserts the product.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	next, err := r.seq.Next(ctx, productsCollection)
	if err != nil {
		return err
	}
	now := time.Now()
	product.ID = strconv.FormatInt(next, 10)
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, product); err != nil {
		return wrapMongoErr("insert product", err)
	}
	product.InStock = product.Stock > 0
	return nil
}

// Update applies a $set of the given fields and returns the updated document.
func (r *ProductRepository) Update(ctx context.Context, id string, fields bson.M) (*models.Product, error) {
	fields["updatedAt"] = time.Now()

	var product models.Product
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product)
	if err != nil {
		return nil, wrapMongoErr("update product", err)
	}
	product.InStock = product.Stock > 0
	return &product, nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return wrapMongoErr("delete product", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock atomically removes qty units if at least qty are available.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       id,
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$gte": qty},
		},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return wrapMongoErr("decrement stock", err)
	}
	if res.MatchedCount == 0 {
		return ErrStockConflict
	}
	return nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return wrapMongoErr("increment stock", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
