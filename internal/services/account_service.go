package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Set(ctx context.Context, id primitive.ObjectID, set bson.M, unset ...string) error
	AddFavorite(ctx context.Context, id primitive.ObjectID, productID string) error
	RemoveFavorite(ctx context.Context, id primitive.ObjectID, productID string) error
}

type RefreshTokenStore interface {
	Insert(ctx context.Context, token *models.RefreshToken) error
	FindActive(ctx context.Context, hash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeByHash(ctx context.Context, hash string) error
}

type Mail struct {
	To      string
	Subject string
	Body    string
}

//go:generate mockgen -destination=mocks/mock_mailer.go -package=mocks storefront/internal/services Mailer

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

type AccountConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=20"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ProfileInput struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=20"`
	Address  string `json:"address"`
	City     string `json:"city"`
	District string `json:"district"`
	Ward     string `json:"ward"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// Session is the token pair handed out at login and refresh.
type Session struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *models.User `json:"user"`
}

type AccountService struct {
	users    UserStore
	tokens   RefreshTokenStore
	products ProductStore
	mailer   Mailer
	cfg      AccountConfig
	now      func() time.Time
}

func NewAccountService(users UserStore, tokens RefreshTokenStore, products ProductStore, mailer Mailer, cfg AccountConfig) *AccountService {
	return &AccountService{
		users:    users,
		tokens:   tokens,
		products: products,
		mailer:   mailer,
		cfg:      cfg,
		now:      nowUTC,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)

// Register creates an unverified account and mails a verification code. A
// failed send is logged; the user can ask for the code again.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("email already registered: %w", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	expires := now.Add(s.cfg.CodeTTL)
	user := &models.User{
		Email:                 in.Email,
		PasswordHash:          string(hash),
		FullName:              in.FullName,
		Phone:                 in.Phone,
		Role:                  models.RoleUser,
		VerificationCode:      code,
		VerificationExpiresAt: &expires,
		Favorites:             []string{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, err
	}
	log.Println("[AUTH] [INFO] user registered:", user.Email)

	if err := s.sendCode(ctx, user.Email, "Verify your account", code); err != nil {
		log.Printf("[AUTH] [ERROR] verification mail to %s failed: %v", user.Email, err)
	}
	return user, nil
}

func (s *AccountService) Verify(ctx context.Context, email, code string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}
	if !s.codeMatches(user.VerificationCode, user.VerificationExpiresAt, code) {
		return invalid("code", "verification code is invalid or expired")
	}
	return s.users.Set(ctx, user.ID, bson.M{"isVerified": true}, "verificationCode", "verificationExpiresAt")
}

func (s *AccountService) ResendCode(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return invalid("email", "email is already verified")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expires := s.now().Add(s.cfg.CodeTTL)
	if err := s.users.Set(ctx, user.ID, bson.M{"verificationCode": code, "verificationExpiresAt": expires}); err != nil {
		return err
	}
	return s.sendCode(ctx, user.Email, "Verify your account", code)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Println("[AUTH] [ERROR] login invalid credentials for user")
		return nil, errInvalidCredentials
	}
	if !user.IsVerified {
		return nil, fmt.Errorf("email not verified: %w", ErrForbidden)
	}

	session, _, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	log.Println("[AUTH] [INFO] user login succeeded:", user.Email)
	return session, nil
}

// Refresh rotates a refresh token: the presented token is revoked and points
// at its replacement.
func (s *AccountService) Refresh(ctx context.Context, plain string) (*Session, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, invalid("refreshToken", "refreshToken is required")
	}

	token, err := s.tokens.FindActive(ctx, hashToken(plain))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("invalid refresh token: %w", ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(token.ExpiresAt) {
		if err := s.tokens.Revoke(ctx, token.ID, nil); err != nil {
			log.Println("[AUTH] [ERROR] revoke expired refresh token failed:", err)
		}
		return nil, fmt.Errorf("refresh token expired: %w", ErrUnauthenticated)
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %w", ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}

	session, replacement, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, token.ID, &replacement); err != nil {
		log.Println("[AUTH] [ERROR] revoke rotated refresh token failed:", err)
	}
	return session, nil
}

func (s *AccountService) Logout(ctx context.Context, plain string) error {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return invalid("refreshToken", "refreshToken is required")
	}
	err := s.tokens.RevokeByHash(ctx, hashToken(plain))
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("invalid refresh token: %w", ErrUnauthenticated)
	}
	return err
}

// ForgotPassword mails a reset code. Unknown emails succeed silently.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		log.Println("[AUTH] [INFO] password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expires := s.now().Add(s.cfg.CodeTTL)
	if err := s.users.Set(ctx, user.ID, bson.M{"resetCode": code, "resetExpiresAt": expires}); err != nil {
		return err
	}
	return s.sendCode(ctx, user.Email, "Reset your password", code)
}

func (s *AccountService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if err := validateStruct(in); err != nil {
		return err
	}

	user, err := s.userByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if !s.codeMatches(user.ResetCode, user.ResetExpiresAt, in.Code) {
		return invalid("code", "reset code is invalid or expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Set(ctx, user.ID, bson.M{"passwordHash": string(hash)}, "resetCode", "resetExpiresAt")
}

func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, err
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	in = ProfileInput{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
		District: strings.TrimSpace(in.District),
		Ward:     strings.TrimSpace(in.Ward),
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = s.users.Set(ctx, user.ID, bson.M{
		"fullName": in.FullName,
		"phone":    in.Phone,
		"address":  in.Address,
		"city":     in.City,
		"district": in.District,
		"ward":     in.Ward,
	})
	if err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return invalid("currentPassword", "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Set(ctx, user.ID, bson.M{"passwordHash": string(hash)})
}

// Favorites resolves the user's favorite product ids in the order they were
// added, skipping products that no longer exist.
func (s *AccountService) Favorites(ctx context.Context, userID string) ([]models.Product, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	found, err := s.products.GetMany(ctx, user.Favorites)
	if err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(user.Favorites))
	for _, id := range user.Favorites {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *AccountService) AddFavorite(ctx context.Context, userID, productID string) ([]models.Product, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("product", productID)
		}
		return nil, err
	}
	if err := s.users.AddFavorite(ctx, id, productID); err != nil {
		return nil, err
	}
	return s.Favorites(ctx, userID)
}

func (s *AccountService) RemoveFavorite(ctx context.Context, userID, productID string) ([]models.Product, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if err := s.users.RemoveFavorite(ctx, id, productID); err != nil {
		return nil, err
	}
	return s.Favorites(ctx, userID)
}

func (s *AccountService) issueSession(ctx context.Context, user *models.User) (*Session, primitive.ObjectID, error) {
	now := s.now()
	access, err := IssueAccessToken(user, s.cfg.JWTSecret, s.cfg.AccessTTL, now)
	if err != nil {
		return nil, primitive.NilObjectID, fmt.Errorf("sign access token: %w", err)
	}
	plain, err := generateRefreshString()
	if err != nil {
		return nil, primitive.NilObjectID, fmt.Errorf("generate refresh token: %w", err)
	}

	refresh := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Insert(ctx, refresh); err != nil {
		return nil, primitive.NilObjectID, err
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: plain,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		User:         user,
	}, refresh.ID, nil
}

func (s *AccountService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user", email)
	}
	return user, err
}

func (s *AccountService) codeMatches(stored string, expiresAt *time.Time, given string) bool {
	given = strings.TrimSpace(given)
	if stored == "" || given == "" || expiresAt == nil {
		return false
	}
	if s.now().After(*expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func (s *AccountService) sendCode(ctx context.Context, to, subject, code string) error {
	minutes := int(s.cfg.CodeTTL.Minutes())
	body := fmt.Sprintf("Your code is %s. It expires in %d minutes.", code, minutes)
	return s.mailer.Send(ctx, Mail{To: to, Subject: subject, Body: body})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
