package middleware

import (
	"crypto/subtle"
	"net/http"

	"unicast/internal/common"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserID is the gin context key holding the authenticated
	// requester's user id.
	ContextUserID = "userID"

	userIDHeader = "X-User-ID"
)

// Auth returns middleware that validates the X-API-Key header against
// configured keys and captures the requester identity from X-User-ID.
// The upstream gateway owns authentication proper; this service only
// verifies it is being called by a trusted peer and records on whose
// behalf the call is made.
func Auth(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			common.Error(c, http.StatusUnauthorized, "missing X-API-Key header")
			c.Abort()
			return
		}

		if !isValidKey(apiKey, validKeys) {
			common.Error(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}

		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			common.Error(c, http.StatusUnauthorized, "missing X-User-ID header")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)

		c.Next()
	}
}

// RequesterID returns the authenticated user id stored by Auth.
func RequesterID(c *gin.Context) string {
	id, _ := c.Get(ContextUserID)
	s, _ := id.(string)
	return s
}

// isValidKey checks the provided key against the list of valid keys using constant-time comparison.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
