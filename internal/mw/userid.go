package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key under which the caller's user id is
// stored.
const UserIDKey = "userID"

// userIDHeader is set by the upstream auth proxy after it has reduced the
// caller to a stable opaque identifier.
const userIDHeader = "X-User-Id"

// UserID extracts the caller's identity from the request. Requests without
// one are rejected before reaching any handler.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}
