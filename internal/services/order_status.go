package services

import (
	"fmt"

	"storefront/internal/models"
)

// orderTransitions lists every legal status change. Admins may skip forward
// (pending straight to delivered) but never move backwards; delivered and
// cancelled have no exits.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending: {
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
	},
	models.OrderStatusProcessing: {
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
	},
	models.OrderStatusShipped: {
		models.OrderStatusDelivered,
	},
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusPending: {
		models.PaymentStatusCompleted,
		models.PaymentStatusFailed,
	},
	models.PaymentStatusFailed: {
		models.PaymentStatusPending,
	},
	models.PaymentStatusCompleted: {
		models.PaymentStatusRefunded,
	},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel holds for pending and processing orders only.
func CanCancel(status models.OrderStatus) bool {
	return CanTransition(status, models.OrderStatusCancelled)
}

func CanTransitionPayment(from, to models.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FormatOrderCode renders an order number as its display label.
func FormatOrderCode(number int64) string {
	return fmt.Sprintf("ORD-%03d", number)
}
