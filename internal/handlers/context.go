package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/quddus-larik/taskel/internal/middleware"
	"github.com/quddus-larik/taskel/internal/models"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user id placed by the auth middleware.
func currentUserID(c *gin.Context) string {
	if id, ok := c.Get(middleware.CtxUserIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// currentUser returns the authenticated user when the middleware resolved it.
func currentUser(c *gin.Context) *models.User {
	if value, ok := c.Get(middleware.CtxUserKey); ok {
		if user, ok := value.(*models.User); ok {
			return user
		}
	}
	return nil
}

// currentSessionID returns the session id placed by the auth middleware.
func currentSessionID(c *gin.Context) string {
	if id, ok := c.Get(middleware.CtxSessionIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
