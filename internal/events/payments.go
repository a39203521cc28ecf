package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/models"
	"storefront/internal/services"
)

// PaymentUpdate is what a client watching an order receives.
type PaymentUpdate struct {
	OrderID       string               `json:"orderId"`
	Code          string               `json:"code"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Status        models.OrderStatus   `json:"status"`
	At            time.Time            `json:"at"`
}

// PaymentNotifier pushes payment status changes over Redis pub/sub so any API
// instance can relay them to a waiting client.
type PaymentNotifier struct {
	client *redis.Client
}

func NewPaymentNotifier(client *redis.Client) *PaymentNotifier {
	return &PaymentNotifier{client: client}
}

func paymentChannel(orderID string) string {
	return "orders:" + orderID + ":payment"
}

// PublishOrderEvent forwards payment changes and ignores everything else.
func (n *PaymentNotifier) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if event.Type != services.OrderPaymentStatusChanged {
		return nil
	}
	payload, err := json.Marshal(PaymentUpdate{
		OrderID:       event.OrderID,
		Code:          event.Code,
		PaymentStatus: event.PaymentStatus,
		Status:        event.Status,
		At:            event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal payment update: %w", err)
	}
	if err := n.client.Publish(ctx, paymentChannel(event.OrderID), payload).Err(); err != nil {
		return fmt.Errorf("publish payment update: %w", err)
	}
	return nil
}

// Subscribe streams updates for one order until ctx is done. The returned
// channel is closed when the subscription ends.
func (n *PaymentNotifier) Subscribe(ctx context.Context, orderID string) (<-chan PaymentUpdate, error) {
	sub := n.client.Subscribe(ctx, paymentChannel(orderID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe payment updates: %w", err)
	}

	out := make(chan PaymentUpdate)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var update PaymentUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					log.Printf("[EVENTS] [ERROR] bad payment update on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
