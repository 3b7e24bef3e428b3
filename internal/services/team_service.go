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

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrTeamMemberNotFound indicates the requested membership does not exist.
	ErrTeamMemberNotFound = apperrors.New("TEAM_MEMBER_NOT_FOUND", "User is not a member of the team", http.StatusNotFound)
)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name        string
	Description string
}

// UpdateTeamInput describes mutable team fields. Nil means keep the prior value.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// TeamMember is the member projection returned to clients: user identity plus
// the membership role.
type TeamMember struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// AddMemberResult distinguishes a fresh membership from an already-member no-op.
type AddMemberResult struct {
	Member        TeamMember `json:"member"`
	AlreadyMember bool       `json:"already_member"`
}

// TeamDetails aggregates a team with its full member and task lists.
type TeamDetails struct {
	models.Team
	Members []TeamMember  `json:"members"`
	Tasks   []models.Task `json:"tasks"`
}

// OwnerStats aggregates counts across all teams owned by a user.
type OwnerStats struct {
	TotalMembers   int64                  `json:"totalMembers"`
	CompletedTasks int64                  `json:"completedTasks"`
	PendingTasks   int64                  `json:"pendingTasks"`
	Members        []models.PublicProfile `json:"members"`
}

// TeamService handles team lifecycle and membership management.
type TeamService struct {
	db       *gorm.DB
	activity *ActivityService
	checker  *permissions.Checker
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, activity *ActivityService, checker *permissions.Checker) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	if checker == nil {
		return nil, errors.New("team service: permission checker is required")
	}
	return &TeamService{
		db:       db,
		activity: activity,
		checker:  checker,
	}, nil
}

// Create registers a new team owned by the actor. The team row and the
// owner-role membership are written in one transaction.
func (s *TeamService) Create(ctx context.Context, actorID string, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, apperrors.NewBadRequest("actor id is required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	team := &models.Team{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     actorID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return fmt.Errorf("team service: create team: %w", err)
		}

		membership := models.Membership{
			UserID:   actorID,
			TeamID:   team.ID,
			Role:     models.RoleOwner,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			return fmt.Errorf("team service: create owner membership: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		UserID:   &team.OwnerID,
		Action:   "team.create",
		Resource: team.ID,
		Result:   "success",
		Metadata: map[string]any{"name": team.Name},
	})

	return team, nil
}

// GetByID loads a team by identifier.
func (s *TeamService) GetByID(ctx context.Context, id string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}

	return &team, nil
}

// Update modifies team metadata. Omitted fields keep their prior values.
func (s *TeamService) Update(ctx context.Context, id string, input UpdateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != team.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) == 0 {
		return team, nil
	}

	if err := s.db.WithContext(ctx).Model(team).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("team service: update team: %w", err)
	}

	if err := s.db.WithContext(ctx).First(team, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("team service: reload team: %w", err)
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "team.update",
		Resource: team.ID,
		Result:   "success",
		Metadata: updates,
	})

	return team, nil
}

// Delete removes a team after verifying the actor (identified by email) owns
// it. Tasks, assignee rows, memberships, and invites go in the same
// transaction so the database cascade rules are never left half-applied.
func (s *TeamService) Delete(ctx context.Context, id, actorEmail string) error {
	ctx = ensureContext(ctx)

	var actor models.User
	err := s.db.WithContext(ctx).First(&actor, "email = ?", normaliseEmail(actorEmail)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("team service: load actor: %w", err)
	}

	team, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.checker.CanDeleteTeam(team, actor.ID) {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM task_assignees WHERE task_id IN (SELECT id FROM tasks WHERE team_id = ?)",
			team.ID,
		).Error; err != nil {
			return fmt.Errorf("team service: delete task assignees: %w", err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("team service: delete tasks: %w", err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.Membership{}).Error; err != nil {
			return fmt.Errorf("team service: delete memberships: %w", err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamInvite{}).Error; err != nil {
			return fmt.Errorf("team service: delete invites: %w", err)
		}
		if err := tx.Delete(team).Error; err != nil {
			return fmt.Errorf("team service: delete team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		UserID:   &actor.ID,
		Action:   "team.delete",
		Resource: team.ID,
		Result:   "success",
	})

	return nil
}

// AddMember attaches the user with the given email to a team. Adding an
// existing member is reported distinctly rather than duplicated; the unique
// index backs the check up under concurrency.
func (s *TeamService) AddMember(ctx context.Context, teamID, email, role string) (*AddMemberResult, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(teamID) == "" {
		return nil, apperrors.NewBadRequest("team id is required")
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load user: %w", err)
	}

	var existing models.Membership
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND team_id = ?", user.ID, team.ID).
		First(&existing).Error
	if err == nil {
		return &AddMemberResult{
			Member:        memberFrom(&user, &existing),
			AlreadyMember: true,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("team service: check membership: %w", err)
	}

	membership := models.Membership{
		UserID:   user.ID,
		TeamID:   team.ID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return &AddMemberResult{
				Member:        memberFrom(&user, &membership),
				AlreadyMember: true,
			}, nil
		}
		return nil, fmt.Errorf("team service: create membership: %w", err)
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "team.add_member",
		Resource: team.ID,
		Result:   "success",
		Metadata: map[string]any{"user_id": user.ID, "role": role},
	})

	return &AddMemberResult{Member: memberFrom(&user, &membership)}, nil
}

// RemoveMember detaches a user from a team.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(userID) == "" {
		return apperrors.NewBadRequest("team id and user id are required")
	}

	result := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.Membership{})
	if result.Error != nil {
		return fmt.Errorf("team service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTeamMemberNotFound
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "team.remove_member",
		Resource: teamID,
		Result:   "success",
		Metadata: map[string]any{"user_id": userID},
	})

	return nil
}

// ListForUser returns the teams the user belongs to via memberships.
func (s *TeamService) ListForUser(ctx context.Context, userID string) ([]models.Team, error) {
	ctx = ensureContext(ctx)

	teams := []models.Team{}
	err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.team_id = teams.id").
		Where("memberships.user_id = ?", userID).
		Order("teams.created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("team service: list teams: %w", err)
	}

	return teams, nil
}

// ListMembers returns the member projections for a team.
func (s *TeamService) ListMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, teamID); err != nil {
		return nil, err
	}

	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("team service: list members: %w", err)
	}

	members := make([]TeamMember, 0, len(memberships))
	for i := range memberships {
		if memberships[i].User == nil {
			continue
		}
		members = append(members, memberFrom(memberships[i].User, &memberships[i]))
	}

	return members, nil
}

// MemberCount returns the number of members in a team.
func (s *TeamService) MemberCount(ctx context.Context, teamID string) (int64, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, teamID); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("team_id = ?", teamID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("team service: count members: %w", err)
	}

	return count, nil
}

// Details aggregates a team with its members and tasks, each task carrying
// its resolved assignee list. Collections are never nil.
func (s *TeamService) Details(ctx context.Context, teamID string) (*TeamDetails, error) {
	ctx = ensureContext(ctx)

	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	members, err := s.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	err = s.db.WithContext(ctx).
		Preload("Assignees").
		Where("team_id = ?", teamID).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("team service: list tasks: %w", err)
	}
	for i := range tasks {
		if tasks[i].Assignees == nil {
			tasks[i].Assignees = []models.User{}
		}
	}

	return &TeamDetails{
		Team:    *team,
		Members: members,
		Tasks:   tasks,
	}, nil
}

// Stats aggregates distinct member and task counts across all teams OWNED by
// the user. Mere membership in somebody else's team contributes nothing;
// this per-owner scoping is deliberate.
func (s *TeamService) Stats(ctx context.Context, ownerID string) (*OwnerStats, error) {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperrors.NewBadRequest("owner id is required")
	}

	stats := &OwnerStats{Members: []models.PublicProfile{}}

	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Joins("JOIN teams ON teams.id = memberships.team_id").
		Where("teams.owner_id = ?", ownerID).
		Distinct("memberships.user_id").
		Count(&stats.TotalMembers).Error
	if err != nil {
		return nil, fmt.Errorf("team service: count members: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Joins("JOIN teams ON teams.id = tasks.team_id").
		Where("teams.owner_id = ? AND tasks.status = ?", ownerID, models.TaskStatusCompleted).
		Count(&stats.CompletedTasks).Error
	if err != nil {
		return nil, fmt.Errorf("team service: count completed tasks: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Joins("JOIN teams ON teams.id = tasks.team_id").
		Where("teams.owner_id = ? AND tasks.status = ?", ownerID, models.TaskStatusPending).
		Count(&stats.PendingTasks).Error
	if err != nil {
		return nil, fmt.Errorf("team service: count pending tasks: %w", err)
	}

	var users []models.User
	err = s.db.WithContext(ctx).
		Distinct("users.*").
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Joins("JOIN teams ON teams.id = memberships.team_id").
		Where("teams.owner_id = ?", ownerID).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("team service: list distinct members: %w", err)
	}
	for i := range users {
		stats.Members = append(stats.Members, users[i].Public())
	}

	return stats, nil
}

func memberFrom(user *models.User, membership *models.Membership) TeamMember {
	return TeamMember{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     membership.Role,
		JoinedAt: membership.JoinedAt,
	}
}
