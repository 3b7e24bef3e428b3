package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/errors"
	"github.com/quddus-larik/taskel/pkg/response"
)

// TaskHandler exposes task lifecycle, status, and assignee endpoints.
type TaskHandler struct {
	svc *services.TaskService
}

func NewTaskHandler(svc *services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type createTaskRequest struct {
	TeamID      string     `json:"team_id" validate:"required"`
	Title       string     `json:"title" validate:"required,min=1,max=256"`
	Description string     `json:"description" validate:"omitempty,max=2048"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low normal high"`
	DueDate     *time.Time `json:"due_date"`
	Assignees   []string   `json:"assignees" validate:"omitempty,dive,required"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=256"`
	Description *string    `json:"description" validate:"omitempty,max=2048"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low normal high"`
	Status      *string    `json:"status" validate:"omitempty,oneof=pending completed"`
	DueDate     *time.Time `json:"due_date"`
	Assignees   *[]string  `json:"assignees"`
}

type taskStatusRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type taskAssigneeRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var body createTaskRequest
	if !bindAndValidate(c, &body) {
		return
	}

	task, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateTaskInput{
		TeamID:      body.TeamID,
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		DueDate:     body.DueDate,
		Assignees:   body.Assignees,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var body updateTaskRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Title == nil && body.Description == nil && body.Priority == nil &&
		body.Status == nil && body.DueDate == nil && body.Assignees == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	task, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		Status:      body.Status,
		DueDate:     body.DueDate,
		Assignees:   body.Assignees,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// PUT /api/tasks/:id/status
func (h *TaskHandler) SetStatus(c *gin.Context) {
	var body taskStatusRequest
	if !bindAndValidate(c, &body) {
		return
	}

	task, err := h.svc.SetStatus(requestContext(c), currentUserID(c), c.Param("id"), *body.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	task, err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true, "task": task})
}

// POST /api/tasks/:id/assignees
func (h *TaskHandler) Assign(c *gin.Context) {
	var body taskAssigneeRequest
	if !bindAndValidate(c, &body) {
		return
	}

	task, err := h.svc.Assign(requestContext(c), currentUserID(c), c.Param("id"), body.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id/assignees/:userID
func (h *TaskHandler) Unassign(c *gin.Context) {
	task, err := h.svc.Unassign(requestContext(c), currentUserID(c), c.Param("id"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// GET /api/tasks/user/:userID
func (h *TaskHandler) ListByUser(c *gin.Context) {
	tasks, err := h.svc.ListByAssignee(requestContext(c), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}
