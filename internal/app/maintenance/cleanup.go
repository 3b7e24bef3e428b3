package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/logger"
)

const (
	defaultActivityRetention = 90 * 24 * time.Hour
	defaultSessionSpec       = "@hourly"
	defaultActivitySpec      = "@daily"
	defaultInviteSpec        = "@daily"
)

// Cleaner coordinates background maintenance tasks: purging expired sessions,
// pruning old activity logs, and removing expired unaccepted invites.
type Cleaner struct {
	sessions  *iauth.SessionService
	activity  *services.ActivityService
	invites   *services.InviteService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	sessionSchedule  string
	activitySchedule string
	inviteSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithActivityRetention adjusts how long activity logs are retained.
func WithActivityRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithActivitySchedule overrides the cron specification for activity retention enforcement.
func WithActivitySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.activitySchedule = spec
		}
	}
}

// WithInviteSchedule overrides the cron specification for invite cleanup.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, activity *services.ActivityService, invites *services.InviteService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:         sessions,
		activity:         activity,
		invites:          invites,
		now:              time.Now,
		retention:        defaultActivityRetention,
		sessionSchedule:  defaultSessionSpec,
		activitySchedule: defaultActivitySpec,
		inviteSchedule:   defaultInviteSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it when at
// least one job is configured.
func (c *Cleaner) Start() error {
	registered := false

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			ctx := context.Background()
			if _, err := c.sessions.CleanupExpired(ctx); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if c.activity != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.activitySchedule, func() {
			ctx := context.Background()
			if _, err := c.activity.DeleteOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
				c.log.Warn("activity cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if c.invites != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, func() {
			ctx := context.Background()
			if _, err := c.invites.DeleteExpired(ctx); err != nil {
				c.log.Warn("invite cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if registered {
		c.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used
// in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.activity != nil && c.retention > 0 {
		if _, err := c.activity.DeleteOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.invites != nil {
		if _, err := c.invites.DeleteExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
