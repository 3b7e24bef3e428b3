package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/errors"
	"github.com/quddus-larik/taskel/pkg/response"
)

// TeamHandler exposes team lifecycle, membership, and stats endpoints.
type TeamHandler struct {
	svc     *services.TeamService
	tasks   *services.TaskService
	invites *services.InviteService
	checker *permissions.Checker
}

func NewTeamHandler(svc *services.TeamService, tasks *services.TaskService, invites *services.InviteService, checker *permissions.Checker) *TeamHandler {
	return &TeamHandler{svc: svc, tasks: tasks, invites: invites, checker: checker}
}

type createTeamRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"omitempty,max=512"`
}

type updateTeamRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

type deleteTeamRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=owner admin member"`
}

// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	teams, err := h.svc.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var body createTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// PUT /api/teams/update/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var body updateTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Description == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	if !h.requireManage(c, c.Param("id")) {
		return
	}

	team, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// DELETE /api/teams/delete/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	var body deleteTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.Delete(requestContext(c), c.Param("id"), body.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/teams/:id/details
func (h *TeamHandler) Details(c *gin.Context) {
	details, err := h.svc.Details(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, details)
}

// GET /api/teams/:id/tasks
func (h *TeamHandler) Tasks(c *gin.Context) {
	if _, err := h.svc.GetByID(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	tasks, err := h.tasks.ListByTeam(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// GET /api/teams/:id/members
func (h *TeamHandler) Members(c *gin.Context) {
	members, err := h.svc.ListMembers(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// GET /api/teams/:id/members/count
func (h *TeamHandler) MemberCount(c *gin.Context) {
	count, err := h.svc.MemberCount(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// POST /api/teams/:id/members
//
// An email without an account does not fail the call: an invite is recorded
// and the signup link is mailed instead.
func (h *TeamHandler) AddMember(c *gin.Context) {
	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if !h.requireManage(c, c.Param("id")) {
		return
	}

	result, err := h.svc.AddMember(requestContext(c), c.Param("id"), body.Email, body.Role)
	if err != nil {
		if errors.FromError(err) == services.ErrUserNotFound {
			h.inviteByEmail(c, c.Param("id"), body.Email)
			return
		}
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyMember {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// DELETE /api/teams/:id/members/:userID
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if !h.requireManage(c, c.Param("id")) {
		return
	}

	if err := h.svc.RemoveMember(requestContext(c), c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// GET /api/teams/stats/:userID
func (h *TeamHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(requestContext(c), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *TeamHandler) inviteByEmail(c *gin.Context, teamID, email string) {
	if h.invites == nil {
		response.Error(c, services.ErrUserNotFound)
		return
	}

	invite, err := h.invites.Invite(requestContext(c), currentUserID(c), teamID, email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"invited":    true,
		"email":      invite.Email,
		"expires_at": invite.ExpiresAt,
	})
}

func (h *TeamHandler) requireManage(c *gin.Context, teamID string) bool {
	team, err := h.svc.GetByID(requestContext(c), strings.TrimSpace(teamID))
	if err != nil {
		response.Error(c, err)
		return false
	}

	ok, err := h.checker.CanManageTeam(requestContext(c), currentUserID(c), team)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return false
	}

	return true
}
