package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/response"
)

// UserHandler exposes user lookup endpoints.
type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GET /api/users/email/:email
func (h *UserHandler) GetByEmail(c *gin.Context) {
	user, err := h.svc.GetByEmail(requestContext(c), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user.Public())
}
