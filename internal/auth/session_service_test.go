package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
)

func openSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createSessionTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{Name: "Alice", Email: "alice@example.com", Password: "hashed"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestSessionServiceCreateAndResolve(t *testing.T) {
	db := openSessionTestDB(t)
	user := createSessionTestUser(t, db)

	svc, err := NewSessionService(db, SessionConfig{})
	require.NoError(t, err)

	ctx := context.Background()

	token, session, err := svc.Create(ctx, user.ID, SessionMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEqual(t, token, session.TokenHash)

	resolved, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, session.ID, resolved.ID)
	require.NotNil(t, resolved.User)
	require.Equal(t, user.Email, resolved.User.Email)

	_, err = svc.Resolve(ctx, "bogus-token")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Resolve(ctx, "")
	require.ErrorIs(t, err, ErrSessionInvalidToken)
}

func TestSessionServiceExpiry(t *testing.T) {
	db := openSessionTestDB(t)
	user := createSessionTestUser(t, db)

	current := time.Now()
	clock := func() time.Time { return current }

	svc, err := NewSessionService(db, SessionConfig{TTL: time.Hour, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()

	token, _, err := svc.Create(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, token)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionServiceRevoke(t *testing.T) {
	db := openSessionTestDB(t)
	user := createSessionTestUser(t, db)

	svc, err := NewSessionService(db, SessionConfig{})
	require.NoError(t, err)

	ctx := context.Background()

	token, session, err := svc.Create(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, session.ID))
	// Revoking twice is a no-op.
	require.NoError(t, svc.Revoke(ctx, session.ID))

	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionRevoked)

	require.ErrorIs(t, svc.Revoke(ctx, "missing"), ErrSessionNotFound)
}

func TestSessionServiceCleanupExpired(t *testing.T) {
	db := openSessionTestDB(t)
	user := createSessionTestUser(t, db)

	current := time.Now()
	clock := func() time.Time { return current }

	svc, err := NewSessionService(db, SessionConfig{TTL: time.Hour, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()

	staleToken, _, err := svc.Create(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	_, revoked, err := svc.Create(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, revoked.ID))

	current = current.Add(2 * time.Hour)

	liveToken, _, err := svc.Create(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	_, err = svc.Resolve(ctx, staleToken)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Resolve(ctx, liveToken)
	require.NoError(t, err)
}
