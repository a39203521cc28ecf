package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// CartSessionHeader carries the anonymous cart token.
const CartSessionHeader = "X-Cart-Session"

const requestTimeout = 5 * time.Second

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type updateCartLineRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type mergeCartRequest struct {
	Lines []services.MergeLine `json:"lines"`
}

func cartOwner(c *gin.Context) services.CartOwner {
	actor := middleware.ActorFrom(c)
	if actor.Authenticated() {
		return services.CartOwner{UserID: actor.UserID}
	}
	return services.CartOwner{SessionID: strings.TrimSpace(c.GetHeader(CartSessionHeader))}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func CreateCartSession(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := carts.NewSessionID()
		c.Header(CartSessionHeader, sessionID)
		respondOK(c, http.StatusCreated, gin.H{"sessionId": sessionID})
	}
}

func GetCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Get(ctx, cartOwner(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, view)
	}
}

func AddToCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		var req addToCartRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Add(ctx, cartOwner(c), strings.TrimSpace(req.ProductID), req.Quantity)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, view)
	}
}

func UpdateCartLine(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/:lineId"
		defer handlePanic(c, route)

		var req updateCartLineRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Update(ctx, cartOwner(c), c.Param("lineId"), *req.Quantity)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, view)
	}
}

func RemoveCartLine(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/:lineId"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Remove(ctx, cartOwner(c), c.Param("lineId"))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, view)
	}
}

func ClearCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/clear"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Clear(ctx, cartOwner(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, view)
	}
}

// MergeCart folds anonymous lines into the caller's cart. Lines in the body
// are merged as given; without a body the X-Cart-Session cart is merged and
// then discarded.
func MergeCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/merge"
		defer handlePanic(c, route)

		var req mergeCartRequest
		if c.Request.ContentLength != 0 {
			if !bindJSON(c, route, &req) {
				return
			}
		}

		actor := middleware.ActorFrom(c)
		ctx, cancel := requestContext(c)
		defer cancel()

		var (
			report *services.MergeReport
			err    error
		)
		if len(req.Lines) > 0 {
			report, err = carts.Merge(ctx, actor.UserID, req.Lines)
		} else {
			report, err = carts.MergeSession(ctx, actor.UserID, strings.TrimSpace(c.GetHeader(CartSessionHeader)))
		}
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, report)
	}
}
