package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/repository"
)

// ProductCatalog is the read side of the product repository.
type ProductCatalog interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, f repository.ProductFilter) ([]models.Product, int64, error)
}

/*
GET /products
- category, search filters
- page + limit optional; defaults apply
*/
func GetProducts(products ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		log.Printf(
			"[%s] hit page=%s limit=%s category=%s search=%s",
			route,
			c.Query("page"),
			c.Query("limit"),
			c.Query("category"),
			c.Query("search"),
		)

		page, err := pageFromQuery(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := products.List(ctx, repository.ProductFilter{
			CategoryID: strings.TrimSpace(c.Query("category")),
			Search:     strings.TrimSpace(c.Query("search")),
			Page:       page,
		})
		if err != nil {
			log.Printf("[%s] [ERROR] list failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] returning %d products", route, len(list))
		respondOK(c, http.StatusOK, listResponse(list, page, total))
	}
}

func GetProduct(products ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := products.Get(ctx, c.Param("id"))
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !product.IsActive) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			log.Printf("[%s] [ERROR] get failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		respondOK(c, http.StatusOK, product)
	}
}
