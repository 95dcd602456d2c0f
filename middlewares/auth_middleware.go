// middlewares/auth_middleware.go
package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"backend/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer credential to a user ID before any other
// work happens. A missing or garbled header is 401; a well-formed credential
// that maps to no user is 403.
func AuthMiddleware(resolver services.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		credential := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := resolver.Resolve(credential)
		if err != nil {
			status := http.StatusForbidden
			if !errors.Is(err, services.ErrUnauthorized) {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
