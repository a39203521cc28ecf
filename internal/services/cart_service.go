package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/repository"
)

// CartOwner identifies a cart: an authenticated user, or an anonymous session
// when UserID is empty.
type CartOwner struct {
	UserID    string
	SessionID string
}

func (o CartOwner) Anonymous() bool {
	return o.UserID == ""
}

func (o CartOwner) key() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.SessionID
}

// MergeLine is one anonymous cart line handed over at login.
type MergeLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type MergeFailure struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// MergeReport summarizes a merge. Lines that failed are not retried and lines
// that were merged are not rolled back.
type MergeReport struct {
	Merged   int              `json:"merged"`
	Failures []MergeFailure   `json:"failures"`
	Cart     *models.CartView `json:"cart"`
}

type CartService struct {
	remote   CartPersistence
	local    CartPersistence
	products ProductStore
	newID    func() string
}

func NewCartService(remote, local CartPersistence, products ProductStore) *CartService {
	return &CartService{
		remote:   remote,
		local:    local,
		products: products,
		newID:    uuid.NewString,
	}
}

// NewSessionID issues a token for an anonymous cart.
func (s *CartService) NewSessionID() string {
	return uuid.NewString()
}

func (s *CartService) store(owner CartOwner) (CartPersistence, error) {
	switch {
	case owner.UserID != "":
		return s.remote, nil
	case owner.SessionID != "":
		return s.local, nil
	default:
		return nil, ErrUnauthenticated
	}
}

func (s *CartService) load(ctx context.Context, owner CartOwner) (*models.Cart, CartPersistence, error) {
	store, err := s.store(owner)
	if err != nil {
		return nil, nil, err
	}

	cart, err := store.Load(ctx, owner.key())
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Cart{UserID: owner.UserID, SessionID: owner.SessionID}, store, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if owner.Anonymous() {
		cart.SessionID = owner.SessionID
	} else {
		cart.UserID = owner.UserID
	}
	return cart, store, nil
}

// Lines returns the raw cart lines without resolving products.
func (s *CartService) Lines(ctx context.Context, owner CartOwner) ([]models.CartLine, error) {
	cart, _, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return cart.Lines, nil
}

// Get reads the cart and resolves every line's product. Lines whose product no
// longer exists are returned without a product so the owner can remove them.
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*models.CartView, error) {
	cart, _, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &models.CartView{Lines: make([]models.CartLineView, 0, len(cart.Lines))}
	subtotal := decimal.Zero
	for _, line := range cart.Lines {
		lv := models.CartLineView{CartLine: line}
		if product, ok := products[line.ProductID]; ok {
			p := product
			amount := lineAmount(p.Price, line.Quantity)
			lv.Product = &p
			lv.LineTotal = amount.InexactFloat64()
			subtotal = subtotal.Add(amount)
		}
		view.ItemCount += line.Quantity
		view.Lines = append(view.Lines, lv)
	}
	view.Subtotal = subtotal.InexactFloat64()
	return view, nil
}

func (s *CartService) purchasable(ctx context.Context, productID string) (*models.Product, error) {
	product, err := s.products.Get(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("product", productID)
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, notFound("product", productID)
	}
	return product, nil
}

// Add puts quantity units of a product in the cart. An existing line for the
// same product is increased, and the combined quantity must fit in stock.
func (s *CartService) Add(ctx context.Context, owner CartOwner, productID string, quantity int) (*models.CartView, error) {
	if quantity < 1 {
		return nil, invalid("quantity", "quantity must be at least 1")
	}

	product, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, store, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	index := -1
	requested := quantity
	for i, line := range cart.Lines {
		if line.ProductID == productID {
			index = i
			requested += line.Quantity
			break
		}
	}

	if err := ValidateStock(requested, product); err != nil {
		return nil, err
	}

	if index >= 0 {
		cart.Lines[index].Quantity = requested
	} else {
		cart.Lines = append(cart.Lines, models.CartLine{
			ID:        s.newID(),
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   nowUTC(),
		})
	}

	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.Get(ctx, owner)
}

// Update replaces a line's quantity. A quantity of zero or less removes the line.
func (s *CartService) Update(ctx context.Context, owner CartOwner, lineID string, quantity int) (*models.CartView, error) {
	if quantity <= 0 {
		return s.Remove(ctx, owner, lineID)
	}

	cart, store, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	index := findLine(cart.Lines, lineID)
	if index < 0 {
		return nil, notFound("cart line", lineID)
	}

	product, err := s.purchasable(ctx, cart.Lines[index].ProductID)
	if err != nil {
		return nil, err
	}
	if err := ValidateStock(quantity, product); err != nil {
		return nil, err
	}

	cart.Lines[index].Quantity = quantity
	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.Get(ctx, owner)
}

// Remove deletes a line. A missing line is NotFound for authenticated carts and
// a no-op for anonymous ones.
func (s *CartService) Remove(ctx context.Context, owner CartOwner, lineID string) (*models.CartView, error) {
	cart, store, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	index := findLine(cart.Lines, lineID)
	if index < 0 {
		if owner.Anonymous() {
			return s.Get(ctx, owner)
		}
		return nil, notFound("cart line", lineID)
	}

	cart.Lines = append(cart.Lines[:index], cart.Lines[index+1:]...)
	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.Get(ctx, owner)
}

func (s *CartService) Clear(ctx context.Context, owner CartOwner) (*models.CartView, error) {
	store, err := s.store(owner)
	if err != nil {
		return nil, err
	}
	if err := store.Delete(ctx, owner.key()); err != nil {
		return nil, err
	}
	return &models.CartView{Lines: []models.CartLineView{}}, nil
}

// Merge replays Add for every line against the user's cart. It is additive:
// merging the same lines twice adds them twice, bounded by stock.
func (s *CartService) Merge(ctx context.Context, userID string, lines []MergeLine) (*MergeReport, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	owner := CartOwner{UserID: userID}
	report := &MergeReport{Failures: []MergeFailure{}}

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.Add(ctx, owner, line.ProductID, line.Quantity); err != nil {
			log.Printf("[CART] [ERROR] merge line product=%s qty=%d failed: %v", line.ProductID, line.Quantity, err)
			report.Failures = append(report.Failures, MergeFailure{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Reason:    err.Error(),
			})
			continue
		}
		report.Merged++
	}

	view, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	report.Cart = view
	return report, nil
}

// MergeSession moves an anonymous session cart into the user's cart and then
// discards the session cart, so a repeated call finds nothing to merge.
func (s *CartService) MergeSession(ctx context.Context, userID, sessionID string) (*MergeReport, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	anonymous := CartOwner{SessionID: sessionID}

	var lines []MergeLine
	if sessionID != "" {
		cartLines, err := s.Lines(ctx, anonymous)
		if err != nil {
			return nil, err
		}
		for _, line := range cartLines {
			lines = append(lines, MergeLine{ProductID: line.ProductID, Quantity: line.Quantity})
		}
	}

	report, err := s.Merge(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	if sessionID != "" {
		if err := s.local.Delete(ctx, sessionID); err != nil {
			log.Printf("[CART] [ERROR] discard anonymous cart %s failed: %v", sessionID, err)
		}
	}
	log.Printf("[CART] [INFO] merged %d/%d anonymous lines for user %s", report.Merged, len(lines), userID)
	return report, nil
}

func findLine(lines []models.CartLine, lineID string) int {
	for i, line := range lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}
