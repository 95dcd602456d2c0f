package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func protectedRouter(resolver services.IdentityResolver, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/meals", AuthMiddleware(resolver), func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("userID")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	resolver := services.StaticIdentityResolver{"token-alice": 1}

	t.Run("missing header is 401", func(t *testing.T) {
		hits := 0
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/meals", nil)
		protectedRouter(resolver, &hits).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, hits, "handler must not run without a credential")
	})

	t.Run("unrecognized credential is 403 and short-circuits", func(t *testing.T) {
		hits := 0
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/meals", nil)
		req.Header.Set("Authorization", "Bearer token-mallory")
		protectedRouter(resolver, &hits).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Zero(t, hits)
	})

	t.Run("known credential passes identity through", func(t *testing.T) {
		hits := 0
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/meals", nil)
		req.Header.Set("Authorization", "Bearer token-alice")
		protectedRouter(resolver, &hits).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, hits)
		assert.Contains(t, w.Body.String(), `"user_id":1`)
	})
}
