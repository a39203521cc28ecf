package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"
)

const orderSequence = "orders"

// Follow-up writes after a committed change run on a context detached from
// the request so a slow client or broker cannot strand them.
const (
	compensationTimeout   = 5 * time.Second
	defaultPublishTimeout = 3 * time.Second
	maxNumberAttempts     = 3
)

type CreateOrderInput struct {
	LineIDs       []string
	Shipping      models.ShippingInfo
	PaymentMethod models.PaymentMethod
}

type LineCleanupFailure struct {
	LineID string `json:"lineId"`
	Reason string `json:"reason"`
}

// CleanupReport lists which consumed cart lines could not be removed after the
// order was placed. The order stands regardless.
type CleanupReport struct {
	Removed []string             `json:"removed"`
	Failed  []LineCleanupFailure `json:"failed"`
}

type CreateOrderResult struct {
	Order   *models.Order `json:"order"`
	Cleanup CleanupReport `json:"cleanup"`
}

type OrderService struct {
	orders   OrderStore
	products ProductStore
	carts    *CartService
	seq      repository.Sequence
	shipping ShippingPolicy
	events   OrderEventPublisher
	now      func() time.Time

	publishTimeout time.Duration
}

func NewOrderService(orders OrderStore, products ProductStore, carts *CartService, seq repository.Sequence, shipping ShippingPolicy, events OrderEventPublisher) *OrderService {
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderService{
		orders:   orders,
		products: products,
		carts:    carts,
		seq:      seq,
		shipping: shipping,
		events:   events,
		now:      nowUTC,

		publishTimeout: defaultPublishTimeout,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Create turns the selected cart lines into an order. Validation is
// all-or-nothing; stock is committed with conditional decrements that are
// undone if any later step fails.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}

	shipping := normalizeShipping(in.Shipping)
	if err := validateStruct(shipping); err != nil {
		return nil, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, invalid("paymentMethod", "paymentMethod must be one of cod, banking, momo, zalopay")
	}

	lineIDs := uniqueStrings(in.LineIDs)
	if len(lineIDs) == 0 {
		return nil, invalid("lineIds", "select at least one cart line")
	}

	owner := CartOwner{UserID: actor.UserID}
	cartLines, err := s.carts.Lines(ctx, owner)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.CartLine, len(cartLines))
	for _, line := range cartLines {
		byID[line.ID] = line
	}

	items := make([]models.OrderItem, 0, len(lineIDs))
	for _, lineID := range lineIDs {
		line, ok := byID[lineID]
		if !ok {
			return nil, notFound("cart line", lineID)
		}

		product, err := s.carts.purchasable(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if err := ValidateStock(line.Quantity, product); err != nil {
			return nil, err
		}

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
	}

	quote := s.shipping.Quote(items)

	committed, err := s.commitStock(ctx, items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	userID := actor.UserID
	order := &models.Order{
		UserID:        &userID,
		Items:         items,
		Subtotal:      quote.Subtotal,
		ShippingFee:   quote.ShippingFee,
		TotalAmount:   quote.Total,
		Shipping:      shipping,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.insertNumbered(ctx, order); err != nil {
		s.restoreStock(ctx, committed)
		return nil, err
	}
	log.Printf("[ORDER] [INFO] order %s created for user %s total=%.0f", order.Code, userID, order.TotalAmount)

	result := &CreateOrderResult{
		Order:   order,
		Cleanup: s.removeConsumedLines(ctx, owner, lineIDs),
	}
	s.publish(ctx, OrderCreated, order)
	return result, nil
}

// insertNumbered assigns the next order number and stores the order. A number
// already taken by a stored order is skipped.
func (s *OrderService) insertNumbered(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		var number int64
		number, err = s.seq.Next(ctx, orderSequence)
		if err != nil {
			return fmt.Errorf("issue order number: %w", err)
		}
		order.Number = number
		order.Code = FormatOrderCode(number)

		err = s.orders.Insert(ctx, order)
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		log.Printf("[ORDER] [WARN] order number %d already taken, retrying", number)
	}
	return fmt.Errorf("issue order number: %w", err)
}

// commitStock decrements stock item by item. On the first failure every
// earlier decrement is restored.
func (s *OrderService) commitStock(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	committed := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			committed = append(committed, item)
			continue
		}

		s.restoreStock(ctx, committed)
		if errors.Is(err, repository.ErrStockConflict) {
			available := 0
			if product, getErr := s.products.Get(ctx, item.ProductID); getErr == nil {
				available = product.Stock
			}
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
		return nil, err
	}
	return committed, nil
}

func (s *OrderService) restoreStock(ctx context.Context, items []models.OrderItem) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	for _, item := range items {
		if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[ORDER] [ERROR] stock restore product=%s qty=%d failed: %v", item.ProductID, item.Quantity, err)
		}
	}
}

func (s *OrderService) removeConsumedLines(ctx context.Context, owner CartOwner, lineIDs []string) CleanupReport {
	report := CleanupReport{
		Removed: make([]string, 0, len(lineIDs)),
		Failed:  []LineCleanupFailure{},
	}
	for _, lineID := range lineIDs {
		if _, err := s.carts.Remove(ctx, owner, lineID); err != nil {
			log.Printf("[ORDER] [ERROR] cart line %s cleanup failed: %v", lineID, err)
			report.Failed = append(report.Failed, LineCleanupFailure{LineID: lineID, Reason: err.Error()})
			continue
		}
		report.Removed = append(report.Removed, lineID)
	}
	return report
}

func (s *OrderService) find(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.orders.Find(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("order", ref)
	}
	return order, err
}

// Get returns an order visible to the actor: its owner or an admin.
func (s *OrderService) Get(ctx context.Context, actor Actor, ref string) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	order, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.OwnedBy(actor.UserID) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor Actor, page repository.Page) ([]models.Order, int64, error) {
	if !actor.Authenticated() {
		return nil, 0, ErrUnauthenticated
	}
	return s.orders.List(ctx, repository.OrderFilter{UserID: actor.UserID, Page: page})
}

func (s *OrderService) ListAll(ctx context.Context, actor Actor, filter repository.OrderFilter) ([]models.Order, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, invalid("status", "unknown order status %q", filter.Status)
	}
	return s.orders.List(ctx, filter)
}

// Cancel is allowed for the owner or an admin while the order is pending or
// processing. Stock held by the order is returned.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, ref string) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	order, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.OwnedBy(actor.UserID) {
		return nil, ErrForbidden
	}
	if !CanCancel(order.Status) {
		return nil, fmt.Errorf("cannot cancel a %s order: %w", order.Status, ErrInvalidTransition)
	}

	if err := s.setStatus(ctx, order, models.OrderStatusCancelled); err != nil {
		return nil, err
	}
	s.restoreStock(ctx, order.Items)
	s.publish(ctx, OrderStatusChanged, order)
	log.Printf("[ORDER] [INFO] order %s cancelled by %s", order.Code, actor.UserID)
	return order, nil
}

// Transition moves an order along the admin workflow.
func (s *OrderService) Transition(ctx context.Context, actor Actor, ref string, to models.OrderStatus) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !to.Valid() {
		return nil, invalid("status", "unknown order status %q", to)
	}
	if to == models.OrderStatusCancelled {
		return s.Cancel(ctx, actor, ref)
	}

	order, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, to) {
		return nil, fmt.Errorf("cannot move order from %s to %s: %w", order.Status, to, ErrInvalidTransition)
	}
	if err := s.setStatus(ctx, order, to); err != nil {
		return nil, err
	}
	s.publish(ctx, OrderStatusChanged, order)
	log.Printf("[ORDER] [INFO] order %s moved to %s", order.Code, to)
	return order, nil
}

func (s *OrderService) setStatus(ctx context.Context, order *models.Order, to models.OrderStatus) error {
	now := s.now()
	err := s.orders.UpdateStatus(ctx, order.ID, order.Status, to, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		return fmt.Errorf("order %s changed concurrently: %w", order.Code, ErrInvalidTransition)
	}
	if err != nil {
		return err
	}
	order.Status = to
	order.UpdatedAt = now
	return nil
}

// UpdatePaymentStatus records a payment outcome reported by an admin or a
// payment gateway callback.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor Actor, ref string, to models.PaymentStatus) (*models.Order, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !to.Valid() {
		return nil, invalid("paymentStatus", "unknown payment status %q", to)
	}

	order, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !CanTransitionPayment(order.PaymentStatus, to) {
		return nil, fmt.Errorf("cannot move payment from %s to %s: %w", order.PaymentStatus, to, ErrInvalidTransition)
	}

	now := s.now()
	err = s.orders.UpdatePaymentStatus(ctx, order.ID, order.PaymentStatus, to, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, fmt.Errorf("order %s payment changed concurrently: %w", order.Code, ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}
	order.PaymentStatus = to
	order.UpdatedAt = now
	s.publish(ctx, OrderPaymentStatusChanged, order)
	log.Printf("[ORDER] [INFO] order %s payment is now %s", order.Code, to)
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType OrderEventType, order *models.Order) {
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID.Hex(),
		Code:          order.Code,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    order.UpdatedAt,
	}
	if order.UserID != nil {
		event.UserID = *order.UserID
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		log.Printf("[ORDER] [ERROR] publish %s for %s failed: %v", eventType, order.Code, err)
	}
}

func normalizeShipping(in models.ShippingInfo) models.ShippingInfo {
	return models.ShippingInfo{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
		District: strings.TrimSpace(in.District),
		Ward:     strings.TrimSpace(in.Ward),
		Note:     strings.TrimSpace(in.Note),
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
