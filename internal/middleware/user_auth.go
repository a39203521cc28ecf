package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
)

// UserAuth validates user JWT tokens and injects userId and role into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret)
}

// OptionalAuth lets anonymous requests through but still rejects a token that
// was sent and does not verify.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, present, message := bearerClaims(c, secret)
		if !present {
			c.Next()
			return
		}
		if claims == nil {
			abortUnauthorized(c, message)
			return
		}

		log.Println("[AUTH] [INFO] user token validated")
		setIdentity(c, claims)
		c.Next()
	}
}
