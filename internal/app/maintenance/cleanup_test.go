package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/internal/models"
	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/internal/services"
)

func openCleanupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
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

func TestCleanerRunOncePurgesStaleRecords(t *testing.T) {
	db := openCleanupTestDB(t)

	user := &models.User{Name: "Owner", Email: "owner@example.com", Password: "hashed"}
	require.NoError(t, db.Create(user).Error)

	team := &models.Team{Name: "Operations", OwnerID: user.ID}
	require.NoError(t, db.Create(team).Error)

	current := time.Now()
	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{
		TTL:   time.Hour,
		Clock: func() time.Time { return current },
	})
	require.NoError(t, err)

	// One session that will expire, one that stays valid.
	_, _, err = sessions.Create(context.Background(), user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	current = current.Add(2 * time.Hour)
	liveToken, _, err := sessions.Create(context.Background(), user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)

	activity, err := services.NewActivityService(db)
	require.NoError(t, err)
	require.NoError(t, activity.Log(context.Background(), services.ActivityEntry{
		Action: "team.create", Resource: team.ID, Result: "success",
	}))
	// Age the entry past the retention window.
	require.NoError(t, db.Model(&models.ActivityLog{}).
		Where("1 = 1").
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	invites, err := services.NewInviteService(db, activity, checker, nil, "")
	require.NoError(t, err)

	expired := models.TeamInvite{
		Email:     "expired@example.com",
		TokenHash: "digest",
		TeamID:    team.ID,
		InvitedBy: user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)

	cleaner := NewCleaner(sessions, activity, invites,
		WithActivityRetention(24*time.Hour),
	)

	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount, logCount, inviteCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.NoError(t, db.Model(&models.ActivityLog{}).Count(&logCount).Error)
	require.NoError(t, db.Model(&models.TeamInvite{}).Count(&inviteCount).Error)

	require.EqualValues(t, 1, sessionCount)
	require.Zero(t, logCount)
	require.Zero(t, inviteCount)

	// The surviving session still resolves.
	_, err = sessions.Resolve(context.Background(), liveToken)
	require.NoError(t, err)
}

func TestCleanerStartAndStopWithoutJobs(t *testing.T) {
	cleaner := NewCleaner(nil, nil, nil)
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
