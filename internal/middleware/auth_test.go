package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/services"
)

const secret = "middleware-secret"

func token(t *testing.T, role models.Role) string {
	t.Helper()
	user := &models.User{ID: primitive.NewObjectID(), Email: "a@example.com", Role: role}
	signed, err := services.IssueAccessToken(user, secret, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return signed
}

func serve(handler gin.HandlerFunc, authorization string) (*httptest.ResponseRecorder, services.Actor) {
	gin.SetMode(gin.TestMode)
	var actor services.Actor
	r := gin.New()
	r.GET("/", handler, func(c *gin.Context) {
		actor = ActorFrom(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, actor
}

func TestUserAuthRejectsMissingToken(t *testing.T) {
	w, _ := serve(UserAuth(secret), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUserAuthRejectsMalformedHeader(t *testing.T) {
	w, _ := serve(UserAuth(secret), "Token abc")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUserAuthSetsActor(t *testing.T) {
	w, actor := serve(UserAuth(secret), "Bearer "+token(t, models.RoleUser))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if !actor.Authenticated() || actor.IsAdmin() {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAdminAuthRequiresAdminRole(t *testing.T) {
	w, _ := serve(AdminAuth(secret), "Bearer "+token(t, models.RoleUser))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w, actor := serve(AdminAuth(secret), "Bearer "+token(t, models.RoleAdmin))
	if w.Code != http.StatusNoContent || !actor.IsAdmin() {
		t.Fatalf("expected admin access, got %d %+v", w.Code, actor)
	}
}

func TestOptionalAuth(t *testing.T) {
	w, actor := serve(OptionalAuth(secret), "")
	if w.Code != http.StatusNoContent || actor.Authenticated() {
		t.Fatalf("anonymous request should pass, got %d %+v", w.Code, actor)
	}

	w, _ = serve(OptionalAuth(secret), "Bearer not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	w, actor = serve(OptionalAuth(secret), "Bearer "+token(t, models.RoleUser))
	if w.Code != http.StatusNoContent || !actor.Authenticated() {
		t.Fatalf("expected authenticated actor, got %d %+v", w.Code, actor)
	}
}
