package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type CategoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

/*
GET /admin/api/categories
- every category, active or not
- ?isActive=true|false narrows the list
*/
func GetAllCategories(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/categories"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := categories.List(ctx, false)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			want := v == "true"
			filtered := make([]models.Category, 0, len(list))
			for _, category := range list {
				if category.IsActive == want {
					filtered = append(filtered, category)
				}
			}
			list = filtered
		}

		respondOK(c, http.StatusOK, list)
	}
}

/*
POST /admin/api/categories
- names are unique
*/
func CreateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/categories"
		defer handlePanic(c, route)

		var req CategoryCreateRequest
		if !bindJSON(c, route, &req) {
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		category := models.Category{Name: name, IsActive: isActive}
		if err := categories.Create(ctx, &category); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondOK(c, http.StatusCreated, category)
	}
}

/*
PUT /admin/api/categories/:id
*/
func UpdateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req CategoryUpdateRequest
		if !bindJSON(c, route, &req) {
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		updated, err := categories.Update(ctx, id, update)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "category not found")
		case errors.Is(err, repository.ErrDuplicate):
			respondWithError(c, http.StatusConflict, route, "category already exists")
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
		default:
			respondOK(c, http.StatusOK, updated)
		}
	}
}

/*
DELETE /admin/api/categories/:id
- soft delete: the category is deactivated
*/
func DeleteCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := categories.Update(ctx, id, bson.M{"isActive": false}); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "category not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.Status(http.StatusNoContent)
	}
}
