package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/api"
	"github.com/quddus-larik/taskel/internal/app"
	"github.com/quddus-larik/taskel/internal/app/maintenance"
	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/internal/database"
	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/logger"
	"github.com/quddus-larik/taskel/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("taskel-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	sessionSvc, err := iauth.NewSessionService(db, iauth.SessionConfig{
		TTL:         cfg.Auth.Session.TTL,
		TokenLength: cfg.Auth.Session.TokenLength,
	})
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	var mailer mail.Mailer
	if cfg.Email.SMTP.Enabled {
		mailer, err = mail.NewSMTPMailer(cfg.SMTPSettings())
		if err != nil {
			return fmt.Errorf("initialise mailer: %w", err)
		}
	}

	cleaner, err := buildCleaner(db, cfg, sessionSvc, mailer)
	if err != nil {
		return err
	}
	if cleaner != nil {
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			if err := cleaner.RunOnce(stopCtx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
			}
		}()
	}

	router, err := api.NewRouter(db, cfg, sessionSvc, mailer)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func buildCleaner(db *gorm.DB, cfg *app.Config, sessions *iauth.SessionService, mailer mail.Mailer) (*maintenance.Cleaner, error) {
	if !cfg.Maintenance.Enabled {
		return nil, nil
	}

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, fmt.Errorf("initialise permission checker: %w", err)
	}
	activitySvc, err := services.NewActivityService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise activity service: %w", err)
	}
	inviteSvc, err := services.NewInviteService(db, activitySvc, checker, mailer, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}

	return maintenance.NewCleaner(sessions, activitySvc, inviteSvc,
		maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
		maintenance.WithActivitySchedule(cfg.Maintenance.ActivitySchedule),
		maintenance.WithActivityRetention(cfg.Maintenance.ActivityRetention),
	), nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database close skipped", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
