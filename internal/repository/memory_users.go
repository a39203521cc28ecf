package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// MemoryUserStore mirrors UserRepository semantics in process memory. Updates
// go through a bson round trip so field names match the stored documents.
// Test double, as is MemoryRefreshTokenStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("insert user: %w", ErrDuplicate)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = copyUser(*user)
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := copyUser(user)
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := copyUser(user)
	return &u, nil
}

func (s *MemoryUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryUserStore) Set(_ context.Context, id primitive.ObjectID, set bson.M, unset ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}

	updated, err := applySet(user, withUpdatedAt(set), unset...)
	if err != nil {
		return err
	}
	s.users[id] = updated
	return nil
}

func (s *MemoryUserStore) AddFavorite(_ context.Context, id primitive.ObjectID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	for _, fav := range user.Favorites {
		if fav == productID {
			return nil
		}
	}
	user.Favorites = append(append([]string(nil), user.Favorites...), productID)
	s.users[id] = user
	return nil
}

func (s *MemoryUserStore) RemoveFavorite(_ context.Context, id primitive.ObjectID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	kept := make([]string, 0, len(user.Favorites))
	for _, fav := range user.Favorites {
		if fav != productID {
			kept = append(kept, fav)
		}
	}
	user.Favorites = kept
	s.users[id] = user
	return nil
}

func copyUser(user models.User) models.User {
	user.Favorites = append([]string{}, user.Favorites...)
	return user
}

type MemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[primitive.ObjectID]models.RefreshToken
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[primitive.ObjectID]models.RefreshToken)}
}

func (s *MemoryRefreshTokenStore) Insert(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	s.tokens[token.ID] = *token
	return nil
}

func (s *MemoryRefreshTokenStore) FindActive(_ context.Context, hash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash && !token.Revoked {
			t := token
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryRefreshTokenStore) Revoke(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	token.Revoked = true
	token.ReplacedByToken = replacedBy
	s.tokens[id] = token
	return nil
}

func (s *MemoryRefreshTokenStore) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, token := range s.tokens {
		if token.TokenHash == hash && !token.Revoked {
			token.Revoked = true
			s.tokens[id] = token
			return nil
		}
	}
	return ErrNotFound
}
