package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/pkg/errors"
	"github.com/quddus-larik/taskel/pkg/response"
)

const (
	// SessionCookieName is the cookie that carries the opaque session token.
	SessionCookieName = "taskel_session"

	CtxUserKey      = "authUser"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// Auth enforces cookie-session authentication using the supplied session service.
func Auth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			response.Error(c, errors.ErrNotAuthenticated)
			c.Abort()
			return
		}

		session, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			// Normalise all resolution failures to 401
			response.Error(c, errors.ErrNotAuthenticated)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxUserIDKey, session.UserID)
		c.Set(CtxSessionIDKey, session.ID)
		if session.User != nil {
			c.Set(CtxUserKey, session.User)
		}

		c.Next()
	}
}

// OptionalAuth resolves the session cookie when present but never rejects the
// request. Login and registration use it to detect an already-authenticated
// caller.
func OptionalAuth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err == nil && token != "" {
			if session, resolveErr := sessions.Resolve(c.Request.Context(), token); resolveErr == nil {
				c.Set(CtxUserIDKey, session.UserID)
				c.Set(CtxSessionIDKey, session.ID)
				if session.User != nil {
					c.Set(CtxUserKey, session.User)
				}
			}
		}

		c.Next()
	}
}
