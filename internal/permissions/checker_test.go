package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
)

func openCheckerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
		&models.Task{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

type checkerFixture struct {
	checker   *Checker
	team      *models.Team
	task      *models.Task
	owner     models.User
	admin     models.User
	member    models.User
	assignee  models.User
	outsider  models.User
}

func newCheckerFixture(t *testing.T) *checkerFixture {
	t.Helper()

	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	f := &checkerFixture{
		checker:  checker,
		owner:    models.User{Name: "Owner", Email: "owner@example.com", Password: "x"},
		admin:    models.User{Name: "Admin", Email: "admin@example.com", Password: "x"},
		member:   models.User{Name: "Member", Email: "member@example.com", Password: "x"},
		assignee: models.User{Name: "Assignee", Email: "assignee@example.com", Password: "x"},
		outsider: models.User{Name: "Outsider", Email: "outsider@example.com", Password: "x"},
	}

	for _, u := range []*models.User{&f.owner, &f.admin, &f.member, &f.assignee, &f.outsider} {
		require.NoError(t, db.Create(u).Error)
	}

	f.team = &models.Team{Name: "Operations", OwnerID: f.owner.ID}
	require.NoError(t, db.Create(f.team).Error)

	memberships := []models.Membership{
		{UserID: f.owner.ID, TeamID: f.team.ID, Role: models.RoleOwner, JoinedAt: time.Now()},
		{UserID: f.admin.ID, TeamID: f.team.ID, Role: models.RoleAdmin, JoinedAt: time.Now()},
		{UserID: f.member.ID, TeamID: f.team.ID, Role: models.RoleMember, JoinedAt: time.Now()},
		{UserID: f.assignee.ID, TeamID: f.team.ID, Role: models.RoleMember, JoinedAt: time.Now()},
	}
	for i := range memberships {
		require.NoError(t, db.Create(&memberships[i]).Error)
	}

	f.task = &models.Task{TeamID: f.team.ID, Title: "ship", Status: models.TaskStatusPending, Priority: models.TaskPriorityNormal}
	require.NoError(t, db.Create(f.task).Error)
	require.NoError(t, db.Model(f.task).Association("Assignees").Append(&f.assignee))

	return f
}

func TestCheckerOwnership(t *testing.T) {
	f := newCheckerFixture(t)

	require.True(t, f.checker.IsTeamOwner(f.team, f.owner.ID))
	require.False(t, f.checker.IsTeamOwner(f.team, f.admin.ID))
	require.False(t, f.checker.IsTeamOwner(nil, f.owner.ID))
	require.False(t, f.checker.IsTeamOwner(f.team, ""))

	require.True(t, f.checker.CanDeleteTeam(f.team, f.owner.ID))
	require.False(t, f.checker.CanDeleteTeam(f.team, f.admin.ID))
}

func TestCheckerTeamRole(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	role, err := f.checker.TeamRole(ctx, f.admin.ID, f.team.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, role)

	role, err = f.checker.TeamRole(ctx, f.outsider.ID, f.team.ID)
	require.NoError(t, err)
	require.Empty(t, role)

	role, err = f.checker.TeamRole(ctx, "", f.team.ID)
	require.NoError(t, err)
	require.Empty(t, role)
}

func TestCheckerCanManageTeam(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	cases := []struct {
		userID string
		want   bool
	}{
		{f.owner.ID, true},
		{f.admin.ID, true},
		{f.member.ID, false},
		{f.outsider.ID, false},
	}
	for _, tc := range cases {
		got, err := f.checker.CanManageTeam(ctx, tc.userID, f.team)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestCheckerCanMutateTask(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		userID string
		want   bool
	}{
		{"owner", f.owner.ID, true},
		{"admin", f.admin.ID, true},
		{"assignee", f.assignee.ID, true},
		{"plain member", f.member.ID, false},
		{"outsider", f.outsider.ID, false},
		{"anonymous", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.checker.CanMutateTask(ctx, tc.userID, f.task, f.team)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	got, err := f.checker.CanMutateTask(ctx, f.owner.ID, nil, f.team)
	require.NoError(t, err)
	require.False(t, got)
}
