package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// applySet mimics a $set/$unset on a value by round-tripping it through bson,
// so memory stores accept the same field names as the Mongo repositories.
func applySet[T any](value T, set bson.M, unset ...string) (T, error) {
	var zero T
	raw, err := bson.Marshal(value)
	if err != nil {
		return zero, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return zero, err
	}
	for k, v := range set {
		doc[k] = v
	}
	for _, k := range unset {
		delete(doc, k)
	}

	raw, err = bson.Marshal(doc)
	if err != nil {
		return zero, err
	}
	var updated T
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return zero, err
	}
	return updated, nil
}

func withUpdatedAt(set bson.M) bson.M {
	out := make(bson.M, len(set)+1)
	for k, v := range set {
		out[k] = v
	}
	out["updatedAt"] = time.Now()
	return out
}

func (s *MemoryProductStore) List(_ context.Context, f ProductFilter) ([]models.Product, int64, error) {
	s.mu.RLock()
	matched := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsDeleted || (!f.IncludeInactive && !p.IsActive) {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		p.InStock = p.Stock > 0
		matched = append(matched, p)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		start := f.skip()
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *MemoryProductStore) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	for {
		if _, taken := s.products[strconv.FormatInt(s.lastID, 10)]; !taken {
			break
		}
		s.lastID++
	}
	now := time.Now()
	product.ID = strconv.FormatInt(s.lastID, 10)
	product.CreatedAt = now
	product.UpdatedAt = now
	product.InStock = product.Stock > 0
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryProductStore) Update(_ context.Context, id string, fields bson.M) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return nil, ErrNotFound
	}
	updated, err := applySet(p, withUpdatedAt(fields))
	if err != nil {
		return nil, err
	}
	s.products[id] = updated
	updated.InStock = updated.Stock > 0
	return &updated, nil
}

func (s *MemoryProductStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return ErrNotFound
	}
	now := time.Now()
	p.IsDeleted = true
	p.DeletedAt = &now
	p.UpdatedAt = now
	s.products[id] = p
	return nil
}

// MemoryCategoryStore mirrors CategoryRepository, including the unique name.
// Test double.
type MemoryCategoryStore struct {
	mu         sync.RWMutex
	categories map[primitive.ObjectID]models.Category
}

func NewMemoryCategoryStore(categories ...models.Category) *MemoryCategoryStore {
	s := &MemoryCategoryStore{categories: make(map[primitive.ObjectID]models.Category)}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return s
}

func (s *MemoryCategoryStore) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryCategoryStore) Exists(_ context.Context, id string) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.categories[objectID]
	return ok, nil
}

func (s *MemoryCategoryStore) Create(_ context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(category.Name, primitive.NilObjectID) {
		return ErrDuplicate
	}
	category.ID = primitive.NewObjectID()
	category.CreatedAt = time.Now()
	s.categories[category.ID] = *category
	return nil
}

func (s *MemoryCategoryStore) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name, ok := set["name"].(string); ok && s.nameTaken(name, id) {
		return nil, ErrDuplicate
	}
	updated, err := applySet(c, set)
	if err != nil {
		return nil, err
	}
	s.categories[id] = updated
	return &updated, nil
}

func (s *MemoryCategoryStore) nameTaken(name string, except primitive.ObjectID) bool {
	for id, c := range s.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}
