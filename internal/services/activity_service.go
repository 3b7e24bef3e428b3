package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
)

// ActivityEntry captures a single activity event to persist.
type ActivityEntry struct {
	UserID   *string
	Action   string
	Resource string
	Result   string
	Metadata map[string]any
}

// ActivityService persists and retrieves the team/task activity feed.
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService constructs an ActivityService using the provided database handle.
func NewActivityService(db *gorm.DB) (*ActivityService, error) {
	if db == nil {
		return nil, errors.New("activity service: db is required")
	}
	return &ActivityService{db: db}, nil
}

// Log stores an activity entry, marshalling metadata into JSON form.
func (s *ActivityService) Log(ctx context.Context, entry ActivityEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("activity service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("activity service: result is required")
	}

	payload := ""
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("activity service: marshal metadata: %w", err)
		}
		payload = string(encoded)
	}

	log := models.ActivityLog{
		Action:   strings.TrimSpace(entry.Action),
		Resource: strings.TrimSpace(entry.Resource),
		Result:   strings.TrimSpace(entry.Result),
		Metadata: payload,
	}

	if entry.UserID != nil && strings.TrimSpace(*entry.UserID) != "" {
		id := strings.TrimSpace(*entry.UserID)
		log.UserID = &id
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("activity service: create log: %w", err)
	}

	return nil
}

// ListRecent returns the newest entries for a resource, capped at limit.
func (s *ActivityService) ListRecent(ctx context.Context, resource string, limit int) ([]models.ActivityLog, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if resource = strings.TrimSpace(resource); resource != "" {
		query = query.Where("resource = ?", resource)
	}

	var logs []models.ActivityLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("activity service: list logs: %w", err)
	}

	return logs, nil
}

// DeleteOlderThan removes entries created before the cutoff and reports how many.
func (s *ActivityService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("activity service: delete logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// recordActivity logs the supplied entry while tolerating logging failures.
func recordActivity(activity *ActivityService, ctx context.Context, entry ActivityEntry) {
	if activity == nil {
		return
	}
	_ = activity.Log(ctx, entry)
}
