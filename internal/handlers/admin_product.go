package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"storefront/internal/models"
	"storefront/internal/repository"
)

// ProductAdminStore is the write side of the product repository.
type ProductAdminStore interface {
	ProductCatalog
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id string, fields bson.M) (*models.Product, error)
	SoftDelete(ctx context.Context, id string) error
}

/* =======================
   HELPERS
======================= */

func sanitizeLogValue(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if max <= 0 {
		max = 80
	}
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}

func checkCategory(ctx context.Context, categories CategoryStore, id string) (int, string) {
	if strings.TrimSpace(id) == "" {
		return http.StatusBadRequest, "categoryId required"
	}
	ok, err := categories.Exists(ctx, id)
	if err != nil {
		return http.StatusInternalServerError, "db error"
	}
	if !ok {
		return http.StatusBadRequest, "category not found: " + id
	}
	return 0, ""
}

// discardUpload drops an image saved for a request that did not go through.
func discardUpload(uploads *UploadStorage, form productForm) {
	if form.ImageURL == nil {
		return
	}
	if err := uploads.Delete(*form.ImageURL); err != nil {
		log.Printf("[PRODUCT] [ERROR] discard upload %s failed: %v", *form.ImageURL, err)
	}
}

/* =======================
   LIST
======================= */

func GetAllProducts(products ProductAdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := products.List(ctx, repository.ProductFilter{
			CategoryID:      strings.TrimSpace(c.Query("category")),
			Search:          strings.TrimSpace(c.Query("search")),
			IncludeInactive: true,
			Page:            page,
		})
		if err != nil {
			log.Printf("[%s] [ERROR] list failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondOK(c, http.StatusOK, listResponse(list, page, total))
	}
}

/* =======================
   CREATE
======================= */

func CreateProduct(products ProductAdminStore, categories CategoryStore, uploads *UploadStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		form, err := parseProductForm(c, uploads)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		fail := func(status int, message string) {
			discardUpload(uploads, form)
			respondWithError(c, status, route, message)
		}

		if form.Name == nil || strings.TrimSpace(*form.Name) == "" {
			fail(http.StatusBadRequest, "name required")
			return
		}
		if form.Price == nil {
			fail(http.StatusBadRequest, "price required")
			return
		}
		if form.Stock == nil {
			fail(http.StatusBadRequest, "stock required")
			return
		}
		if *form.Stock < 0 {
			fail(http.StatusBadRequest, "stock must be zero or greater")
			return
		}

		pricing, err := resolvePriceUpdate(*form.Price, nil, priceUpdateInput{
			OldPrice: form.OldPrice,
		})
		if err != nil {
			fail(http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		categoryID := ""
		if form.CategoryID != nil {
			categoryID = *form.CategoryID
		}
		if status, message := checkCategory(ctx, categories, categoryID); status != 0 {
			fail(status, message)
			return
		}

		product := models.Product{
			Name:       strings.TrimSpace(*form.Name),
			Price:      pricing.Price,
			OldPrice:   pricing.OldPrice,
			Discount:   pricing.Discount,
			CategoryID: categoryID,
			Stock:      *form.Stock,
			IsActive:   true,
		}
		if form.Description != nil {
			product.Description = *form.Description
		}
		if form.ImageURL != nil {
			product.ImageURL = *form.ImageURL
		}
		if form.IsActive != nil {
			product.IsActive = *form.IsActive
		}

		if err := products.Create(ctx, &product); err != nil {
			log.Printf("[%s] [ERROR] insert failed: %v", route, err)
			fail(http.StatusInternalServerError, "db error")
			return
		}

		log.Printf("[%s] [INFO] created product %s name=%q", route, product.ID, sanitizeLogValue(product.Name, 80))
		respondOK(c, http.StatusCreated, product)
	}
}

/* =======================
   UPDATE
======================= */

func UpdateProduct(products ProductAdminStore, categories CategoryStore, uploads *UploadStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id := c.Param("id")

		form, err := parseProductForm(c, uploads)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		fail := func(status int, message string) {
			discardUpload(uploads, form)
			respondWithError(c, status, route, message)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := products.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			fail(http.StatusNotFound, "product not found")
			return
		}
		if err != nil {
			fail(http.StatusInternalServerError, "db error")
			return
		}

		update := bson.M{}

		if form.Name != nil {
			name := strings.TrimSpace(*form.Name)
			if name == "" {
				fail(http.StatusBadRequest, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if form.Description != nil {
			update["description"] = *form.Description
		}
		if form.Stock != nil {
			if *form.Stock < 0 {
				fail(http.StatusBadRequest, "stock must be zero or greater")
				return
			}
			update["stock"] = *form.Stock
		}
		if form.IsActive != nil {
			update["isActive"] = *form.IsActive
		}
		if form.CategoryID != nil {
			if status, message := checkCategory(ctx, categories, *form.CategoryID); status != 0 {
				fail(status, message)
				return
			}
			update["categoryId"] = *form.CategoryID
		}

		// ---- PRICING ----

		if form.Price != nil || form.OldPrice != nil || form.ClearOldPrice {
			pricing, err := resolvePriceUpdate(existing.Price, existing.OldPrice, priceUpdateInput{
				Price:         form.Price,
				OldPrice:      form.OldPrice,
				ClearOldPrice: form.ClearOldPrice,
			})
			if err != nil {
				fail(http.StatusBadRequest, err.Error())
				return
			}
			update["price"] = pricing.Price
			update["discount"] = pricing.Discount
			if pricing.SetOldPrice {
				update["oldPrice"] = pricing.OldPrice
			}
		}

		// ---- IMAGE ----

		if form.ImageURL != nil {
			update["imageUrl"] = *form.ImageURL
		}

		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		updated, err := products.Update(ctx, id, update)
		if errors.Is(err, repository.ErrNotFound) {
			fail(http.StatusNotFound, "product not found")
			return
		}
		if err != nil {
			log.Printf("[%s] [ERROR] update failed: %v", route, err)
			fail(http.StatusInternalServerError, "db error")
			return
		}

		if form.ImageURL != nil && existing.ImageURL != "" && existing.ImageURL != *form.ImageURL {
			if err := uploads.Delete(existing.ImageURL); err != nil {
				log.Printf("[%s] [ERROR] old image delete failed: %v", route, err)
			}
		}

		respondOK(c, http.StatusOK, updated)
	}
}

/* =======================
   DELETE (SOFT)
======================= */

func DeleteProduct(products ProductAdminStore, uploads *UploadStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id := c.Param("id")

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := products.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := products.SoftDelete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := uploads.Delete(existing.ImageURL); err != nil {
			log.Printf("[%s] [ERROR] image delete failed: %v", route, err)
		}

		c.Status(http.StatusNoContent)
	}
}
