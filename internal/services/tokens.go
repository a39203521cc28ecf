package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// AccessClaims is what a verified access token carries.
type AccessClaims struct {
	UserID string
	Email  string
	Role   models.Role
}

func IssueAccessToken(user *models.User, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"email":  user.Email,
		"role":   string(user.Role),
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken verifies an HS256 token and extracts its identity claims.
func ParseAccessToken(raw, secret string) (*AccessClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims: %w", ErrUnauthenticated)
	}

	userID, _ := claims["userId"].(string)
	if _, err := primitive.ObjectIDFromHex(strings.TrimSpace(userID)); err != nil {
		return nil, fmt.Errorf("invalid userId claim: %w", ErrUnauthenticated)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(models.RoleUser)
	}

	return &AccessClaims{UserID: userID, Email: email, Role: models.Role(role)}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// generateCode returns a zero-padded six digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
