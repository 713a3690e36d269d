package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the pre-shared key for protected endpoints.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey guards an endpoint with a pre-shared key. Token issuance
// and real user auth live in a separate collaborator service; this is
// only the gate in front of the ingest trigger. An empty configured key
// rejects everything, so an unset API_KEY cannot mean "open".
func RequireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(APIKeyHeader)

		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":       "UNAUTHORIZED",
					"message":    "A valid API key is required",
					"request_id": GetRequestID(c),
				},
			})
			return
		}

		c.Next()
	}
}
