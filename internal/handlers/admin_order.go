package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
)

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" binding:"required"`
}

func AdminListOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := orders.ListAll(ctx, middleware.ActorFrom(c), repository.OrderFilter{
			UserID: strings.TrimSpace(c.Query("userId")),
			Status: models.OrderStatus(strings.TrimSpace(c.Query("status"))),
			Page:   page,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, listResponse(list, page, total))
	}
}

func AdminUpdateOrderStatus(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		var req updateOrderStatusRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.Transition(ctx, middleware.ActorFrom(c), c.Param("id"), req.Status)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

func AdminUpdatePaymentStatus(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/payment"
		defer handlePanic(c, route)

		var req updatePaymentStatusRequest
		if !bindJSON(c, route, &req) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.UpdatePaymentStatus(ctx, middleware.ActorFrom(c), c.Param("id"), req.PaymentStatus)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}
