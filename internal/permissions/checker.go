package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
)

// Checker evaluates role-based authorization rules against the database.
// Decisions are pure allow/deny outcomes; callers translate a deny into a
// Forbidden response.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a Checker using the provided database handle.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permissions: db is required")
	}
	return &Checker{db: db}, nil
}

// IsTeamOwner reports whether the user owns the team. No query is issued.
func (c *Checker) IsTeamOwner(team *models.Team, userID string) bool {
	if team == nil {
		return false
	}
	userID = strings.TrimSpace(userID)
	return userID != "" && team.OwnerID == userID
}

// CanDeleteTeam grants team deletion to the owner only.
func (c *Checker) CanDeleteTeam(team *models.Team, userID string) bool {
	return c.IsTeamOwner(team, userID)
}

// TeamRole returns the membership role of the user within the team, or the
// empty string when no membership exists.
func (c *Checker) TeamRole(ctx context.Context, userID, teamID string) (string, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	teamID = strings.TrimSpace(teamID)
	if userID == "" || teamID == "" {
		return "", nil
	}

	var membership models.Membership
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND team_id = ?", userID, teamID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("permissions: load membership: %w", err)
	}

	return membership.Role, nil
}

// CanManageTeam grants team settings and unrestricted task authority to the
// owner and to admin-role members.
func (c *Checker) CanManageTeam(ctx context.Context, userID string, team *models.Team) (bool, error) {
	if c.IsTeamOwner(team, userID) {
		return true, nil
	}
	if team == nil {
		return false, nil
	}

	role, err := c.TeamRole(ctx, userID, team.ID)
	if err != nil {
		return false, err
	}

	return role == models.RoleOwner || role == models.RoleAdmin, nil
}

// CanMutateTask grants task mutation to the team owner, admin-role members,
// and the task's current assignees. Checks are ordered cheapest first: the
// ownership comparison costs nothing, the role lookup one row, and the
// assignee lookup is only reached when both fail.
func (c *Checker) CanMutateTask(ctx context.Context, userID string, task *models.Task, team *models.Team) (bool, error) {
	if task == nil {
		return false, nil
	}

	if c.IsTeamOwner(team, userID) {
		return true, nil
	}

	ok, err := c.CanManageTeam(ctx, userID, team)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	return c.isAssignee(ctx, userID, task.ID)
}

func (c *Checker) isAssignee(ctx context.Context, userID, taskID string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	taskID = strings.TrimSpace(taskID)
	if userID == "" || taskID == "" {
		return false, nil
	}

	var count int64
	if err := c.db.WithContext(ctx).
		Table("task_assignees").
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("permissions: check assignee: %w", err)
	}

	return count > 0, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
