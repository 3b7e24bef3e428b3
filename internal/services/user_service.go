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
	"github.com/quddus-larik/taskel/pkg/crypto"
	apperrors "github.com/quddus-larik/taskel/pkg/errors"
)

const minPasswordLength = 6

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken signals a registration attempt with an email already in use.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "Email already registered", http.StatusConflict)
)

// RegisterInput captures a signup request. TeamID and OwnerID carry invite
// parameters from the signup link and are optional.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	TeamID   string
	OwnerID  string
}

// RegisterResult reports the created user and whether an invited team was joined.
type RegisterResult struct {
	User       *models.User
	JoinedTeam bool
}

// UserService handles registration, credential checks, and user lookups.
type UserService struct {
	db       *gorm.DB
	activity *ActivityService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, activity *ActivityService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, activity: activity}, nil
}

// Register creates an account and, when the signup link carried an invited
// team, joins it with the member role.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := normaliseEmail(input.Email)

	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("name, email, and password are required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("user service: check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// Unique index backstop for concurrent registrations.
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	result := &RegisterResult{User: user}

	if teamID := strings.TrimSpace(input.TeamID); teamID != "" {
		joined, joinErr := s.joinInvitedTeam(ctx, user, teamID)
		if joinErr != nil {
			return nil, joinErr
		}
		result.JoinedTeam = joined
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		UserID:   &user.ID,
		Action:   "user.register",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"joined_team": result.JoinedTeam},
	})

	return result, nil
}

// joinInvitedTeam adds the freshly registered user to the invited team and
// consumes any pending invite rows. An unknown team id is ignored rather than
// failing the registration.
func (s *UserService) joinInvitedTeam(ctx context.Context, user *models.User, teamID string) (bool, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user service: load invited team: %w", err)
	}

	membership := models.Membership{
		UserID:   user.ID,
		TeamID:   team.ID,
		Role:     models.RoleMember,
		JoinedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return false, fmt.Errorf("user service: join invited team: %w", err)
		}
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.TeamInvite{}).
		Where("email = ? AND team_id = ? AND accepted_at IS NULL", user.Email, team.ID).
		Update("accepted_at", now).Error; err != nil {
		return false, fmt.Errorf("user service: consume invite: %w", err)
	}

	return true, nil
}

// Authenticate verifies the email/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return &user, nil
}

// GetByEmail returns the user with the given email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	return &user, nil
}

// GetByID returns the user with the given identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	return &user, nil
}
