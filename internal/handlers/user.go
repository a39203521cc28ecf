package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

type favoriteRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func UpdateProfile(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /user/profile"
		defer handlePanic(c, route)

		var req services.ProfileInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := accounts.UpdateProfile(ctx, middleware.ActorFrom(c).UserID, req)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}

func ChangePassword(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /user/password"
		defer handlePanic(c, route)

		var req services.ChangePasswordInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.ChangePassword(ctx, middleware.ActorFrom(c).UserID, req); err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"changed": true})
	}
}

func GetUserFavorites(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/favorites"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := accounts.Favorites(ctx, middleware.ActorFrom(c).UserID)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func AddUserFavorite(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /user/favorites"
		defer handlePanic(c, route)

		var req favoriteRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := accounts.AddFavorite(ctx, middleware.ActorFrom(c).UserID, req.ProductID)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}

func DeleteUserFavorite(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /user/favorites/:productId"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := accounts.RemoveFavorite(ctx, middleware.ActorFrom(c).UserID, c.Param("productId"))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, products)
	}
}
