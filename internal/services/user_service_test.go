package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quddus-larik/taskel/internal/models"
	apperrors "github.com/quddus-larik/taskel/pkg/errors"
)

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	result, err := stack.users.Register(ctx, RegisterInput{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "sup3rsecret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.User.ID)
	require.Equal(t, "alice@example.com", result.User.Email)
	require.False(t, result.JoinedTeam)
	require.NotEqual(t, "sup3rsecret", result.User.Password)

	user, err := stack.users.Authenticate(ctx, "alice@example.com", "sup3rsecret")
	require.NoError(t, err)
	require.Equal(t, result.User.ID, user.ID)

	_, err = stack.users.Authenticate(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = stack.users.Authenticate(ctx, "nobody@example.com", "sup3rsecret")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserServiceRegisterValidation(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	_, err := stack.users.Register(ctx, RegisterInput{Email: "a@b.com", Password: "longenough"})
	require.Error(t, err)

	_, err = stack.users.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "short"})
	require.Error(t, err)
}

func TestUserServiceRegisterDuplicateEmail(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	_, err := stack.users.Register(ctx, RegisterInput{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "sup3rsecret",
	})
	require.NoError(t, err)

	_, err = stack.users.Register(ctx, RegisterInput{
		Name:     "Other Bob",
		Email:    "BOB@example.com",
		Password: "sup3rsecret",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserServiceRegisterJoinsInvitedTeam(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	owner := createTestUser(t, stack.db, "Owner", "owner@example.com")
	team, err := stack.teams.Create(ctx, owner.ID, CreateTeamInput{Name: "Invited Team"})
	require.NoError(t, err)

	invite := models.TeamInvite{
		Email:     "carol@example.com",
		TokenHash: "digest",
		TeamID:    team.ID,
		InvitedBy: owner.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, stack.db.Create(&invite).Error)

	result, err := stack.users.Register(ctx, RegisterInput{
		Name:     "Carol",
		Email:    "carol@example.com",
		Password: "sup3rsecret",
		TeamID:   team.ID,
		OwnerID:  owner.ID,
	})
	require.NoError(t, err)
	require.True(t, result.JoinedTeam)

	role, err := stack.checker.TeamRole(ctx, result.User.ID, team.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, role)

	var consumed models.TeamInvite
	require.NoError(t, stack.db.First(&consumed, "id = ?", invite.ID).Error)
	require.NotNil(t, consumed.AcceptedAt)
}

func TestUserServiceRegisterIgnoresUnknownInviteTeam(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	result, err := stack.users.Register(ctx, RegisterInput{
		Name:     "Dave",
		Email:    "dave@example.com",
		Password: "sup3rsecret",
		TeamID:   "00000000-0000-0000-0000-000000000000",
	})
	require.NoError(t, err)
	require.False(t, result.JoinedTeam)
}

func TestUserServiceLookups(t *testing.T) {
	stack := newTestStack(t)
	ctx := testContext()

	user := createTestUser(t, stack.db, "Erin", "erin@example.com")

	byEmail, err := stack.users.GetByEmail(ctx, "ERIN@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	byID, err := stack.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, byID.Email)

	_, err = stack.users.GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = stack.users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}
