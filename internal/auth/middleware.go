package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is where the middleware stores the authenticated user id.
const ContextUserKey = "authUserID"

// Middleware validates the bearer token and stores the caller's user id on
// the request context. Routes carrying a :userId parameter additionally
// require it to match the token's subject.
func Middleware(manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := manager.Verify(strings.TrimPrefix(header, prefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		if param := c.Param("userId"); param != "" {
			pathID, err := strconv.ParseInt(param, 10, 64)
			if err != nil || pathID != userID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(ContextUserKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user id placed by Middleware.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserKey)
}
