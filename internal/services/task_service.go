package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
	"github.com/quddus-larik/taskel/internal/permissions"
	apperrors "github.com/quddus-larik/taskel/pkg/errors"
)

// ErrTaskNotFound indicates the requested task does not exist.
var ErrTaskNotFound = apperrors.New("TASK_NOT_FOUND", "Task not found", http.StatusNotFound)

// CreateTaskInput captures a new task. Assignee ids are deduplicated; unknown
// ids are rejected with a bad-request error before any row is written.
type CreateTaskInput struct {
	TeamID      string
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	Assignees   []string
}

// UpdateTaskInput describes mutable task fields. Nil means keep the prior
// value. A non-nil Assignees pointer, including one to an empty slice,
// replaces the whole assignee set.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *time.Time
	Assignees   *[]string
}

// TaskService handles task lifecycle, status, and assignee management.
type TaskService struct {
	db       *gorm.DB
	activity *ActivityService
	checker  *permissions.Checker
}

// NewTaskService constructs a TaskService instance.
func NewTaskService(db *gorm.DB, activity *ActivityService, checker *permissions.Checker) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if checker == nil {
		return nil, errors.New("task service: permission checker is required")
	}
	return &TaskService{
		db:       db,
		activity: activity,
		checker:  checker,
	}, nil
}

// Create inserts a task and its assignee rows in one transaction and returns
// the task with the resolved assignee users.
func (s *TaskService) Create(ctx context.Context, actorID string, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("task title is required")
	}

	teamID := strings.TrimSpace(input.TeamID)
	if teamID == "" {
		return nil, apperrors.NewBadRequest("team id is required")
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = models.TaskPriorityNormal
	}
	if !models.ValidTaskPriority(priority) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", priority))
	}

	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: load team: %w", err)
	}

	task := &models.Task{
		TeamID:      team.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      models.TaskStatusPending,
		Priority:    priority,
		DueDate:     input.DueDate,
		CreatedBy:   strings.TrimSpace(actorID),
	}

	assigneeIDs := normaliseIDs(input.Assignees)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("task service: create task: %w", err)
		}
		if len(assigneeIDs) > 0 {
			if err := replaceAssignees(tx, task, assigneeIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "task.create",
		Resource: task.ID,
		Result:   "success",
		Metadata: map[string]any{"team_id": team.ID, "title": task.Title},
	})

	return s.reload(ctx, task.ID)
}

// Update applies a partial update. Omitted fields keep their prior values;
// an explicitly provided assignee list (even empty) replaces the set
// atomically within the surrounding transaction.
func (s *TaskService) Update(ctx context.Context, actorID, id string, input UpdateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, team, err := s.loadWithTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, actorID, task, team); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("task title must not be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		priority := strings.TrimSpace(*input.Priority)
		if !models.ValidTaskPriority(priority) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", priority))
		}
		updates["priority"] = priority
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if !models.ValidTaskStatus(status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown status %q", status))
		}
		updates["status"] = status
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(task).Updates(updates).Error; err != nil {
				return fmt.Errorf("task service: update task: %w", err)
			}
		}
		if input.Assignees != nil {
			if err := replaceAssignees(tx, task, normaliseIDs(*input.Assignees)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "task.update",
		Resource: task.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.reload(ctx, task.ID)
}

// SetStatus toggles a task between pending and completed. The caller must be
// the team owner, an admin-role member, or an assignee.
func (s *TaskService) SetStatus(ctx context.Context, actorID, id string, completed bool) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, team, err := s.loadWithTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, actorID, task, team); err != nil {
		return nil, err
	}

	status := models.TaskStatusPending
	if completed {
		status = models.TaskStatusCompleted
	}

	if err := s.db.WithContext(ctx).Model(task).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("task service: update status: %w", err)
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "task.set_status",
		Resource: task.ID,
		Result:   "success",
		Metadata: map[string]any{"status": status},
	})

	return s.reload(ctx, task.ID)
}

// Delete removes a task along with its assignee rows and returns the deleted
// snapshot. Requires team-manage authority (owner or admin).
func (s *TaskService) Delete(ctx context.Context, actorID, id string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, team, err := s.loadWithTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.checker.CanManageTeam(ctx, actorID, team)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	snapshot, err := s.reload(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_assignees WHERE task_id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("task service: delete assignees: %w", err)
		}
		if err := tx.Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("task service: delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "task.delete",
		Resource: task.ID,
		Result:   "success",
		Metadata: map[string]any{"team_id": team.ID},
	})

	return snapshot, nil
}

// Assign adds a user to the task's assignee set. Assigning an existing
// assignee is a no-op success.
func (s *TaskService) Assign(ctx context.Context, actorID, taskID, userID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, team, err := s.loadWithTeam(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, actorID, task, team); err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: load user: %w", err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).
		Table("task_assignees").
		Where("task_id = ? AND user_id = ?", task.ID, user.ID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("task service: check assignee: %w", err)
	}

	if existing == 0 {
		if err := s.db.WithContext(ctx).Model(task).Association("Assignees").Append(&user); err != nil {
			return nil, fmt.Errorf("task service: append assignee: %w", err)
		}

		recordActivity(s.activity, ctx, ActivityEntry{
			Action:   "task.assign",
			Resource: task.ID,
			Result:   "success",
			Metadata: map[string]any{"user_id": user.ID},
		})
	}

	return s.reload(ctx, task.ID)
}

// Unassign removes a user from the task's assignee set. Unassigning a user
// who is not assigned is a no-op success.
func (s *TaskService) Unassign(ctx context.Context, actorID, taskID, userID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, team, err := s.loadWithTeam(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, actorID, task, team); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).
		Exec("DELETE FROM task_assignees WHERE task_id = ? AND user_id = ?", task.ID, strings.TrimSpace(userID))
	if result.Error != nil {
		return nil, fmt.Errorf("task service: remove assignee: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		recordActivity(s.activity, ctx, ActivityEntry{
			Action:   "task.unassign",
			Resource: task.ID,
			Result:   "success",
			Metadata: map[string]any{"user_id": userID},
		})
	}

	return s.reload(ctx, task.ID)
}

// ListByTeam returns a team's tasks ordered by due date with resolved assignees.
func (s *TaskService) ListByTeam(ctx context.Context, teamID string) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Preload("Assignees").
		Where("team_id = ?", teamID).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("task service: list by team: %w", err)
	}

	for i := range tasks {
		if tasks[i].Assignees == nil {
			tasks[i].Assignees = []models.User{}
		}
	}

	return tasks, nil
}

// ListByAssignee returns the tasks currently assigned to a user.
func (s *TaskService) ListByAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Preload("Assignees").
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ?", userID).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("task service: list by assignee: %w", err)
	}

	for i := range tasks {
		if tasks[i].Assignees == nil {
			tasks[i].Assignees = []models.User{}
		}
	}

	return tasks, nil
}

func (s *TaskService) requireMutate(ctx context.Context, actorID string, task *models.Task, team *models.Team) error {
	ok, err := s.checker.CanMutateTask(ctx, actorID, task, team)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *TaskService) loadWithTeam(ctx context.Context, id string) (*models.Task, *models.Team, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("task service: load task: %w", err)
	}

	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", task.TeamID).Error; err != nil {
		return nil, nil, fmt.Errorf("task service: load team: %w", err)
	}

	return &task, &team, nil
}

func (s *TaskService) reload(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Assignees").
		First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: reload task: %w", err)
	}

	if task.Assignees == nil {
		task.Assignees = []models.User{}
	}

	return &task, nil
}

// replaceAssignees swaps the task's assignee set for the given user ids
// inside the caller's transaction. Unknown ids are rejected before the swap
// so a failed lookup cannot leave the task assignee-less.
func replaceAssignees(tx *gorm.DB, task *models.Task, userIDs []string) error {
	var users []models.User
	if len(userIDs) > 0 {
		if err := tx.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return fmt.Errorf("task service: load assignees: %w", err)
		}
		if len(users) != len(userIDs) {
			return apperrors.NewBadRequest("one or more assignees were not found")
		}
	}

	if err := tx.Model(task).Association("Assignees").Replace(users); err != nil {
		return fmt.Errorf("task service: replace assignees: %w", err)
	}

	return nil
}
