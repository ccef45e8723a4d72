package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderName carries the shared secret on every protected request.
const HeaderName = "X-API-Key"

// APIKeyMiddleware rejects requests whose X-API-Key header does not match apiKey exactly.
// A missing and a wrong key are both 401. An empty apiKey rejects everything.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		provided := c.GetHeader(HeaderName)
		if provided == "" || len(expected) == 0 ||
			subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}
		c.Next()
	}
}
