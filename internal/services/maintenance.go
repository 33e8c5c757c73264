package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maintenanceLockName = "maintenance"
	maintenanceSchedule = "30 3 * * *"
)

// MaintenanceReport counts what one maintenance run removed.
type MaintenanceReport struct {
	Invitations   int64
	RefreshTokens int64
	AuditLogs     int64
}

// MaintenanceScheduler purges expired invitations, dead refresh tokens and old
// audit logs once a day. Each day's run is claimed through a scheduler lock so
// that only one instance performs it.
type MaintenanceScheduler struct {
	db            *gorm.DB
	invitations   *InvitationService
	auth          *AuthService
	audit         *AuditLogService
	retentionDays int
	instanceID    string
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewMaintenanceScheduler(db *gorm.DB, invitations *InvitationService, auth *AuthService, audit *AuditLogService, retentionDays int) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		db:            db,
		invitations:   invitations,
		auth:          auth,
		audit:         audit,
		retentionDays: retentionDays,
		instanceID:    uuid.NewString(),
		now:           time.Now,
	}
}

func (m *MaintenanceScheduler) Start() error {
	m.cronScheduler = cron.New()

	if _, err := m.cronScheduler.AddFunc(maintenanceSchedule, func() {
		if _, _, err := m.RunOnce(context.Background()); err != nil {
			logger.Error().Err(err).Msg("maintenance run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}

	m.cronScheduler.Start()
	logger.Info().Str("cron", maintenanceSchedule).Msg("maintenance scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (m *MaintenanceScheduler) Stop() {
	if m.cronScheduler != nil {
		<-m.cronScheduler.Stop().Done()
	}
}

// RunOnce performs today's maintenance unless another instance already
// claimed it. ran is false when the run was skipped.
func (m *MaintenanceScheduler) RunOnce(ctx context.Context) (report MaintenanceReport, ran bool, err error) {
	now := m.now()
	claimed, err := m.claim(ctx, now)
	if err != nil || !claimed {
		return report, false, err
	}

	if report.Invitations, err = m.invitations.PurgeExpired(ctx); err != nil {
		return report, true, err
	}
	if report.RefreshTokens, err = m.auth.PurgeRefreshTokens(ctx); err != nil {
		return report, true, err
	}
	if report.AuditLogs, err = m.audit.CleanupOldLogs(ctx, m.retentionDays); err != nil {
		return report, true, err
	}

	logger.Info().
		Int64("invitations", report.Invitations).
		Int64("refresh_tokens", report.RefreshTokens).
		Int64("audit_logs", report.AuditLogs).
		Msg("maintenance completed")
	return report, true, nil
}

func (m *MaintenanceScheduler) claim(ctx context.Context, now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  maintenanceLockName,
		LockKey:   now.UTC().Format(dateLayout),
		LockedBy:  m.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	res := m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, fmt.Errorf("claim maintenance run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logger.Debug().Str("key", lock.LockKey).Msg("maintenance already claimed")
		return false, nil
	}

	if err := m.db.WithContext(ctx).
		Where("lock_name = ? AND expires_at < ?", maintenanceLockName, now.Add(-7*24*time.Hour)).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warn().Err(err).Msg("failed to prune scheduler locks")
	}
	return true, nil
}
