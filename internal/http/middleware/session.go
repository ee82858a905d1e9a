package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mdms/backend/internal/session"
)

const (
	SessionHeader = "X-Session-Token"
	sessionKey    = "session"
)

// Session resolves the caller's session from a bearer token, the
// X-Session-Token header, or a "token" query parameter (browsers cannot set
// headers on websocket upgrades).
func Session(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionHeader)
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if token == "" {
			token = c.Query("token")
		}
		s, ok := reg.Get(token)
		if token == "" || !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or unknown session")
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequireRole rejects sessions whose profile role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if s == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or unknown session")
			return
		}
		for _, r := range roles {
			if s.Profile.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "Role "+s.Profile.Role+" may not use this endpoint")
	}
}

func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
