package main

import (
	"context"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/handlers"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	redis       *redis.Client
	maintenance *services.MaintenanceScheduler
	taskQueue   services.TaskQueue
	worker      *services.Worker
	email       *services.EmailService

	authService     *services.AuthService
	auditLogService *services.AuditLogService

	authHandler     *handlers.AuthHandler
	boardHandler    *handlers.BoardHandler
	taskHandler     *handlers.TaskHandler
	auditLogHandler *handlers.AuditLogHandler
	healthHandler   *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	svc := newAppServices(models.GetDB(), cfg, middleware.NewRedisClient(&cfg.Redis))

	// Create staff user from ADMIN_EMAIL / ADMIN_PASSWORD
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := svc.authService.CreateStaffIfNotExists(context.Background(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Warn().Err(err).Msg("Failed to create staff user")
		}
	}

	// Invitation emails go through Redis when the queue came up async
	if svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis, svc.email.SendInvitation)
		if err := svc.worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start async worker")
			svc.worker = nil
		}
	}

	if err := svc.maintenance.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	}

	return svc
}

// newAppServices wires services and handlers over an open, migrated database.
// redisClient may be nil.
func newAppServices(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *appServices {
	authService := services.NewAuthService(db, &cfg.JWT)
	boardService := services.NewBoardService(db)
	emailService := services.NewEmailService(&cfg.Mail)
	taskQueue := services.NewTaskQueue(&cfg.Redis, emailService.SendInvitation)
	invitationService := services.NewInvitationService(db, boardService, cfg.Invitation.TTLHours).
		WithNotifier(taskQueue)
	taskService := services.NewTaskService(db)
	commentService := services.NewCommentService(db)
	auditLogService := services.NewAuditLogService(db)

	return &appServices{
		cfg:         cfg,
		db:          db,
		redis:       redisClient,
		taskQueue:   taskQueue,
		email:       emailService,
		maintenance: services.NewMaintenanceScheduler(db, invitationService, authService, auditLogService, cfg.Audit.RetentionDays),

		authService:     authService,
		auditLogService: auditLogService,

		authHandler:     handlers.NewAuthHandler(authService),
		boardHandler:    handlers.NewBoardHandler(boardService, invitationService),
		taskHandler:     handlers.NewTaskHandler(taskService, commentService),
		auditLogHandler: handlers.NewAuditLogHandler(auditLogService),
		healthHandler:   handlers.NewHealthHandler(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.maintenance.Stop()
	logger.Info().Msg("Maintenance scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if err := s.taskQueue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
