package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/app"
	iauth "github.com/quddus-larik/taskel/internal/auth"
	"github.com/quddus-larik/taskel/internal/handlers"
	"github.com/quddus-larik/taskel/internal/middleware"
	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/internal/services"
	"github.com/quddus-larik/taskel/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, cfg *app.Config, sessions *iauth.SessionService, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	activity, err := services.NewActivityService(db)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db, activity)
	if err != nil {
		return nil, err
	}
	teamSvc, err := services.NewTeamService(db, activity, checker)
	if err != nil {
		return nil, err
	}
	taskSvc, err := services.NewTaskService(db, activity, checker)
	if err != nil {
		return nil, err
	}
	inviteSvc, err := services.NewInviteService(db, activity, checker, mailer, cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigin...))

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(userSvc, sessions, cfg.Auth.Session.TTL, cfg.Auth.Session.SecureCookie)
	teamHandler := handlers.NewTeamHandler(teamSvc, taskSvc, inviteSvc, checker)
	taskHandler := handlers.NewTaskHandler(taskSvc)
	userHandler := handlers.NewUserHandler(userSvc)

	requireAuth := middleware.Auth(sessions)
	optionalAuth := middleware.OptionalAuth(sessions)

	// Public auth routes; an existing session short-circuits them.
	r.POST("/api/register", optionalAuth, authHandler.Register)
	r.POST("/api/login", optionalAuth, authHandler.Login)
	r.GET("/api/auth/status", optionalAuth, authHandler.Status)

	// Protected routes
	api := r.Group("/api")
	api.Use(requireAuth)

	api.DELETE("/logout", authHandler.Logout)

	// Users
	api.GET("/users/email/:email", userHandler.GetByEmail)

	// Teams
	teams := api.Group("/teams")
	{
		teams.GET("", teamHandler.List)
		teams.POST("", teamHandler.Create)
		teams.PUT("/update/:id", teamHandler.Update)
		teams.DELETE("/delete/:id", teamHandler.Delete)
		teams.GET("/:id/details", teamHandler.Details)
		teams.GET("/:id/tasks", teamHandler.Tasks)
		teams.GET("/:id/members", teamHandler.Members)
		teams.GET("/:id/members/count", teamHandler.MemberCount)
		teams.POST("/:id/members", teamHandler.AddMember)
		teams.DELETE("/:id/members/:userID", teamHandler.RemoveMember)
		teams.GET("/stats/:userID", teamHandler.Stats)
	}

	// Tasks
	tasks := api.Group("/tasks")
	{
		tasks.POST("", taskHandler.Create)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.PUT("/:id/status", taskHandler.SetStatus)
		tasks.DELETE("/:id", taskHandler.Delete)
		tasks.POST("/:id/assignees", taskHandler.Assign)
		tasks.DELETE("/:id/assignees/:userID", taskHandler.Unassign)
		tasks.GET("/user/:userID", taskHandler.ListByUser)
	}

	return r, nil
}
