package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
	ContextEmail  = "email"
)

type authError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, authError{Error: message, Code: "unauthenticated"})
}

// bearerClaims extracts and verifies the bearer token. present reports whether
// an Authorization header was sent at all.
func bearerClaims(c *gin.Context, secret string) (claims *services.AccessClaims, present bool, message string) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, false, "missing token"
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		log.Println("[AUTH] [ERROR] invalid token format")
		return nil, true, "invalid token"
	}

	claims, err := services.ParseAccessToken(parts[1], secret)
	if err != nil {
		log.Println("[AUTH] [ERROR] token validation failed:", err)
		return nil, true, "unauthorized"
	}
	return claims, true, ""
}

func setIdentity(c *gin.Context, claims *services.AccessClaims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextEmail, claims.Email)
}

// AuthGuard requires a valid bearer token and, when roles are given, one of them.
func AuthGuard(secret string, allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _, message := bearerClaims(c, secret)
		if claims == nil {
			abortUnauthorized(c, message)
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if claims.Role == r {
					match = true
					break
				}
			}
			if !match {
				log.Printf("[AUTH] [ERROR] role %s denied for %s", claims.Role, c.FullPath())
				c.AbortWithStatusJSON(http.StatusForbidden, authError{Error: "forbidden", Code: "forbidden"})
				return
			}
		}

		setIdentity(c, claims)
		c.Next()
	}
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, models.RoleAdmin)
}

// ActorFrom returns the identity set by the auth middleware, or the zero
// Actor for anonymous requests.
func ActorFrom(c *gin.Context) services.Actor {
	userID := c.GetString(ContextUserID)
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return services.Actor{UserID: userID, Role: r}
}
