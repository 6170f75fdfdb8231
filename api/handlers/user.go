package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/logger"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	HeaderUserID     = "X-User-ID"
	ContextKeyUserID = "user_id"
)

// RequireUser reads the caller's id, set upstream by the authenticating
// proxy, and rejects requests without one.
func RequireUser(logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			logger.Warn("request without a valid user id", "path", c.Request.URL.Path)
			c.Abort()
			writeResponse(c, nil, http.StatusUnauthorized, []string{"missing or invalid " + HeaderUserID + " header"})
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

// RequireAdmin guards the index maintenance routes with a shared token. An
// empty token disables the check.
func RequireAdmin(logger logger.Logger, token string) gin.HandlerFunc {
	if token == "" {
		logger.Warn("no admin token configured, index routes are open")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		given := c.GetHeader(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			logger.Warn("index request without a valid admin token", "path", c.Request.URL.Path)
			c.Abort()
			writeResponse(c, nil, http.StatusForbidden, []string{"missing or invalid " + HeaderAdminToken + " header"})
			return
		}
		c.Next()
	}
}
