package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/pkg/crypto"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
		&models.Task{},
		&models.Session{},
		&models.TeamInvite{},
		&models.ActivityLog{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

type testStack struct {
	db       *gorm.DB
	checker  *permissions.Checker
	activity *ActivityService
	users    *UserService
	teams    *TeamService
	tasks    *TaskService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := openServiceTestDB(t)

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	activity, err := NewActivityService(db)
	require.NoError(t, err)

	users, err := NewUserService(db, activity)
	require.NoError(t, err)

	teams, err := NewTeamService(db, activity, checker)
	require.NoError(t, err)

	tasks, err := NewTaskService(db, activity, checker)
	require.NoError(t, err)

	return &testStack{
		db:       db,
		checker:  checker,
		activity: activity,
		users:    users,
		teams:    teams,
		tasks:    tasks,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword("p@ssW0rd!")
	require.NoError(t, err)

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
	}
	require.NoError(t, db.Create(user).Error)

	return user
}

func testContext() context.Context {
	return context.Background()
}
