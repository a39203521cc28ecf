package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/events"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

/* =========================
   REQUEST DTOs
========================= */

type createOrderRequest struct {
	LineIDs       []string             `json:"lineIds" binding:"required,min=1"`
	Shipping      models.ShippingInfo  `json:"shipping"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required"`
}

// PaymentWatcher streams payment status changes for one order.
type PaymentWatcher interface {
	Subscribe(ctx context.Context, orderID string) (<-chan events.PaymentUpdate, error)
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		var req createOrderRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := orders.Create(ctx, middleware.ActorFrom(c), services.CreateOrderInput{
			LineIDs:       req.LineIDs,
			Shipping:      req.Shipping,
			PaymentMethod: models.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod)))),
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		if len(result.Cleanup.Failed) > 0 {
			log.Printf("[ORDER] [ERROR] order %s placed but %d cart lines were not cleared", result.Order.Code, len(result.Cleanup.Failed))
		}
		respondOK(c, http.StatusCreated, result)
	}
}

/* =========================
   READ ORDERS
========================= */

func GetOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := orders.ListMine(ctx, middleware.ActorFrom(c), page)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, listResponse(list, page, total))
	}
}

// GetOrder accepts either the order id or its display code.
func GetOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.Get(ctx, middleware.ActorFrom(c), c.Param("id"))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

/* =========================
   CANCEL ORDER
========================= */

func CancelOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.Cancel(ctx, middleware.ActorFrom(c), c.Param("id"))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

/* =========================
   PAYMENT EVENTS (SSE)
========================= */

// PaymentEvents pushes payment status changes as server-sent events. Without a
// realtime channel it answers 503 and clients poll GET /orders/:id instead.
func PaymentEvents(orders *services.OrderService, watcher PaymentWatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id/payment-events"
		defer handlePanic(c, route)

		if watcher == nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "realtime updates unavailable, poll the order instead")
			return
		}

		actor := middleware.ActorFrom(c)
		lookupCtx, cancel := requestContext(c)
		order, err := orders.Get(lookupCtx, actor, c.Param("id"))
		cancel()
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		updates, err := watcher.Subscribe(c.Request.Context(), order.ID.Hex())
		if err != nil {
			log.Printf("[%s] [ERROR] subscribe failed: %v", route, err)
			respondWithError(c, http.StatusServiceUnavailable, route, "realtime updates unavailable, poll the order instead")
			return
		}

		// Read again once subscribed: a change published before Subscribe is
		// not replayed.
		snapshotCtx, cancel := requestContext(c)
		order, err = orders.Get(snapshotCtx, actor, order.ID.Hex())
		cancel()
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("payment", events.PaymentUpdate{
			OrderID:       order.ID.Hex(),
			Code:          order.Code,
			PaymentStatus: order.PaymentStatus,
			Status:        order.Status,
			At:            order.UpdatedAt,
		})
		c.Writer.Flush()

		last := order.PaymentStatus
		if paymentSettled(last) {
			return
		}
		c.Stream(func(w io.Writer) bool {
			update, ok := <-updates
			if !ok {
				return false
			}
			if update.PaymentStatus == last {
				return true
			}
			last = update.PaymentStatus
			c.SSEvent("payment", update)
			return !paymentSettled(last)
		})
	}
}

// paymentSettled reports whether a client has nothing more to wait for.
func paymentSettled(status models.PaymentStatus) bool {
	return status != models.PaymentStatusPending && status != models.PaymentStatusFailed
}
