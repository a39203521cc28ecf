package services_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/services/mocks"
)

const testSecret = "test-secret"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type accountFixture struct {
	svc      *services.AccountService
	users    *repository.MemoryUserStore
	products *repository.MemoryProductStore
	mailer   *mocks.MockMailer
	codes    []string
}

func newAccountFixture(t *testing.T) *accountFixture {
	ctrl := gomock.NewController(t)
	f := &accountFixture{
		users:    repository.NewMemoryUserStore(),
		products: repository.NewMemoryProductStore(product("1", 100, 5), product("2", 200, 5)),
		mailer:   mocks.NewMockMailer(ctrl),
	}
	f.mailer.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, mail services.Mail) error {
			if m := codePattern.FindStringSubmatch(mail.Body); m != nil {
				f.codes = append(f.codes, m[1])
			}
			return nil
		}).
		AnyTimes()

	f.svc = services.NewAccountService(f.users, repository.NewMemoryRefreshTokenStore(), f.products, f.mailer, services.AccountConfig{
		JWTSecret:  testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		CodeTTL:    10 * time.Minute,
	})
	return f
}

func (f *accountFixture) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.codes)
	return f.codes[len(f.codes)-1]
}

func (f *accountFixture) registerVerified(t *testing.T, email, password string) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.svc.Register(ctx, services.RegisterInput{Email: email, Password: password, FullName: "Test User"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, email, f.lastCode(t)))
	return user
}

func TestRegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)

	user, err := f.svc.Register(ctx, services.RegisterInput{Email: " Buyer@Example.com ", Password: "secret1", FullName: "Buyer"})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.Equal(t, models.RoleUser, user.Role)

	_, err = f.svc.Login(ctx, "buyer@example.com", "secret1")
	assert.ErrorIs(t, err, services.ErrForbidden)

	err = f.svc.Verify(ctx, "buyer@example.com", "000000x")
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, f.svc.Verify(ctx, "buyer@example.com", f.lastCode(t)))

	session, err := f.svc.Login(ctx, "buyer@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, int64(900), session.ExpiresIn)

	claims, err := services.ParseAccessToken(session.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)

	_, err := f.svc.Register(ctx, services.RegisterInput{Email: "a@example.com", Password: "secret1", FullName: "A"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, services.RegisterInput{Email: "A@example.com", Password: "secret1", FullName: "A"})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.svc.Register(ctx, services.RegisterInput{Email: "not-an-email", Password: "secret1", FullName: "A"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.svc.Register(ctx, services.RegisterInput{Email: "b@example.com", Password: "123", FullName: "B"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAccountFixture(t)
	f.registerVerified(t, "a@example.com", "secret1")

	_, err := f.svc.Login(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	f.registerVerified(t, "a@example.com", "secret1")

	session, err := f.svc.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	require.NoError(t, f.svc.Logout(ctx, rotated.RefreshToken))
	_, err = f.svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	err = f.svc.Logout(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	f.registerVerified(t, "a@example.com", "secret1")

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@example.com"))
	code := f.lastCode(t)

	err := f.svc.ResetPassword(ctx, services.ResetPasswordInput{Email: "a@example.com", Code: "999999", NewPassword: "newsecret"})
	if code != "999999" {
		assert.ErrorIs(t, err, services.ErrValidation)
	}

	require.NoError(t, f.svc.ResetPassword(ctx, services.ResetPasswordInput{Email: "a@example.com", Code: code, NewPassword: "newsecret"}))

	_, err = f.svc.Login(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
	_, err = f.svc.Login(ctx, "a@example.com", "newsecret")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, services.ResetPasswordInput{Email: "a@example.com", Code: code, NewPassword: "again12"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	user := f.registerVerified(t, "a@example.com", "secret1")

	updated, err := f.svc.UpdateProfile(ctx, user.ID.Hex(), services.ProfileInput{FullName: " New Name ", City: "Hanoi"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, "Hanoi", updated.City)

	_, err = f.svc.UpdateProfile(ctx, user.ID.Hex(), services.ProfileInput{})
	assert.ErrorIs(t, err, services.ErrValidation)

	err = f.svc.ChangePassword(ctx, user.ID.Hex(), services.ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "another1"})
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID.Hex(), services.ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "another1"}))
	_, err = f.svc.Login(ctx, "a@example.com", "another1")
	assert.NoError(t, err)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	user := f.registerVerified(t, "a@example.com", "secret1")
	id := user.ID.Hex()

	favs, err := f.svc.AddFavorite(ctx, id, "2")
	require.NoError(t, err)
	require.Len(t, favs, 1)

	favs, err = f.svc.AddFavorite(ctx, id, "1")
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "2", favs[0].ID)
	assert.Equal(t, "1", favs[1].ID)

	_, err = f.svc.AddFavorite(ctx, id, "404")
	assert.ErrorIs(t, err, services.ErrNotFound)

	favs, err = f.svc.RemoveFavorite(ctx, id, "2")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "1", favs[0].ID)
}

func TestParseAccessTokenRejectsForeignSignature(t *testing.T) {
	user := &models.User{Email: "a@example.com", Role: models.RoleAdmin}
	user.ID = [12]byte{1}
	token, err := services.IssueAccessToken(user, "other-secret", time.Minute, time.Now())
	require.NoError(t, err)

	_, err = services.ParseAccessToken(token, testSecret)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	claims, err := services.ParseAccessToken(token, "other-secret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
