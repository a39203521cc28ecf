package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

// AdminLogin is Login restricted to admin accounts. It never touches carts.
func AdminLogin(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		session, err := accounts.Login(ctx, req.Email, req.Password)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		if session.User.Role != models.RoleAdmin {
			log.Printf("[AUTH] [ERROR] admin login denied for user %s", session.User.ID.Hex())
			if err := accounts.Logout(ctx, session.RefreshToken); err != nil {
				log.Printf("[AUTH] [ERROR] revoke non-admin session failed: %v", err)
			}
			respondWithError(c, http.StatusForbidden, route, "admin access required")
			return
		}

		respondOK(c, http.StatusOK, session)
	}
}
