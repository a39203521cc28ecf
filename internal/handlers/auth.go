package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// loginResponse is a session plus the outcome of folding the caller's
// anonymous cart into their account cart.
type loginResponse struct {
	*services.Session
	CartMerge *services.MergeReport `json:"cartMerge,omitempty"`
}

func Register(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req services.RegisterInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := accounts.Register(ctx, req)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		log.Printf("[AUTH] [INFO] registered user %s", user.ID.Hex())
		respondOK(c, http.StatusCreated, user)
	}
}

func VerifyEmail(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/verify"
		defer handlePanic(c, route)

		var req VerifyRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.Verify(ctx, req.Email, strings.TrimSpace(req.Code)); err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"verified": true})
	}
}

func ResendCode(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/resend-code"
		defer handlePanic(c, route)

		var req EmailRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.ResendCode(ctx, req.Email); err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"sent": true})
	}
}

/*
POST /auth/login
- an X-Cart-Session header merges that anonymous cart into the user's cart
- a failed merge never fails the login
*/
func Login(accounts *services.AccountService, carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
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

		resp := loginResponse{Session: session}
		if sessionID := strings.TrimSpace(c.GetHeader(CartSessionHeader)); sessionID != "" {
			report, err := carts.MergeSession(ctx, session.User.ID.Hex(), sessionID)
			if err != nil {
				log.Printf("[AUTH] [ERROR] cart merge at login failed: %v", err)
			} else {
				resp.CartMerge = report
			}
		}

		respondOK(c, http.StatusOK, resp)
	}
}

func Refresh(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		session, err := accounts.Refresh(ctx, req.RefreshToken)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, session)
	}
}

func Logout(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.Logout(ctx, req.RefreshToken); err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ForgotPassword answers the same way whether or not the email is registered.
func ForgotPassword(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/forgot-password"
		defer handlePanic(c, route)

		var req EmailRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.ForgotPassword(ctx, req.Email); err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"sent": true})
	}
}

func ResetPassword(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/reset-password"
		defer handlePanic(c, route)

		var req services.ResetPasswordInput
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := accounts.ResetPassword(ctx, req); err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"reset": true})
	}
}

func GetMe(accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := accounts.Me(ctx, middleware.ActorFrom(c).UserID)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, user)
	}
}
