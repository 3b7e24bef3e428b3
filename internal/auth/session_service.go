package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
	"github.com/quddus-larik/taskel/pkg/crypto"
	"github.com/quddus-larik/taskel/pkg/metrics"
)

// DefaultSessionTTL is the fallback session cookie lifetime.
const DefaultSessionTTL = 24 * time.Hour

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	Clock       func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

var (
	// ErrSessionNotFound indicates that no session matches the provided token or identifier.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session that has been terminated by logout.
	ErrSessionRevoked = errors.New("session: revoked")
	// ErrSessionExpired signals that a session cookie has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionInvalidToken is returned when the supplied cookie token is malformed.
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

// SessionService manages creation, resolution, and revocation of cookie sessions.
// Only the SHA-256 digest of the opaque token reaches the database.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
	}, nil
}

// Create establishes a new session for the user and returns the cookie token.
func (s *SessionService) Create(ctx context.Context, userID string, meta SessionMetadata) (string, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("session service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()

	session := &models.Session{
		UserID:     userID,
		TokenHash:  crypto.TokenDigest(token),
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return token, session, nil
}

// Resolve maps a cookie token to its session and user, touching LastUsedAt.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalidToken
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token_hash = ?", crypto.TokenDigest(token)).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: load session: %w", err)
	}

	now := s.now()
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	session.LastUsedAt = now
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", session.ID).
		Update("last_used_at", now).Error; err != nil {
		return nil, fmt.Errorf("session service: touch session: %w", err)
	}

	return &session, nil
}

// Revoke terminates a session by identifier; revoking twice is a no-op.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session service: session id is required")
	}

	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("session service: load session: %w", err)
	}

	if session.RevokedAt != nil {
		return nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&session).Update("revoked_at", now).Error; err != nil {
		return fmt.Errorf("session service: revoke session: %w", err)
	}

	metrics.ActiveSessions.Dec()

	return nil
}

// CleanupExpired removes sessions that expired or were revoked before now.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()

	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired: %w", result.Error)
	}

	return result.RowsAffected, nil
}
