package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/internal/middleware"
	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/errors"
	"github.com/quddus-larik/taskel/pkg/metrics"
	"github.com/quddus-larik/taskel/pkg/response"
)

// AuthHandler manages the cookie-session flows (register/login/logout/status).
type AuthHandler struct {
	users    *services.UserService
	sessions *iauth.SessionService

	cookieTTL    time.Duration
	secureCookie bool
}

func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService, cookieTTL time.Duration, secureCookie bool) *AuthHandler {
	if cookieTTL <= 0 {
		cookieTTL = iauth.DefaultSessionTTL
	}
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		cookieTTL:    cookieTTL,
		secureCookie: secureCookie,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	TeamID   string `json:"team_id" validate:"omitempty"`
	OwnerID  string `json:"owner_id" validate:"omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	// An authenticated caller keeps their current identity.
	if user := currentUser(c); user != nil {
		response.Success(c, http.StatusOK, gin.H{"user": user.Public(), "already_authenticated": true})
		return
	}

	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.users.Register(requestContext(c), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		TeamID:   req.TeamID,
		OwnerID:  req.OwnerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":        result.User.Public(),
		"joined_team": result.JoinedTeam,
	})
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	if user := currentUser(c); user != nil {
		response.Success(c, http.StatusOK, gin.H{"user": user.Public(), "already_authenticated": true})
		return
	}

	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		// Normalise auth errors to 401
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	token, _, err := h.sessions.Create(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	h.setSessionCookie(c, token, int(h.cookieTTL.Seconds()))
	response.Success(c, http.StatusOK, gin.H{"user": user.Public()})
}

// DELETE /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID := currentSessionID(c); sessionID != "" {
		if err := h.sessions.Revoke(requestContext(c), sessionID); err != nil {
			response.Error(c, errors.ErrInternalServer)
			return
		}
	}

	h.setSessionCookie(c, "", -1)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// GET /api/auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	if user := currentUser(c); user != nil {
		response.Success(c, http.StatusOK, gin.H{"authenticated": true, "user": user.Public()})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"authenticated": false, "user": nil})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", h.secureCookie, true)
}
