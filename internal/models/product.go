package models

import "time"

// Product is the catalog document. Stock is the authoritative availability count.
type Product struct {
	ID          string     `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64    `bson:"price" json:"price"`
	OldPrice    *float64   `bson:"oldPrice,omitempty" json:"oldPrice,omitempty"`
	Discount    int        `bson:"discount" json:"discount"`
	CategoryID  string     `bson:"categoryId" json:"categoryId"`
	ImageURL    string     `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Stock       int        `bson:"stock" json:"stock"`
	InStock     bool       `bson:"-" json:"inStock"`
	Rating      float64    `bson:"rating" json:"rating"`
	ReviewCount int        `bson:"reviewCount" json:"reviewCount"`
	IsActive    bool       `bson:"isActive" json:"isActive"`
	IsDeleted   bool       `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt   *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}
