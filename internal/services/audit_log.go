package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/gorm"
)

type AuditLogService struct {
	db *gorm.DB
}

func NewAuditLogService(db *gorm.DB) *AuditLogService {
	return &AuditLogService{db: db}
}

// AuditEntry is one mutating request as seen by the audit middleware.
type AuditEntry struct {
	Level     string
	Module    string
	Action    string
	Message   string
	UserID    *uint
	IP        string
	UserAgent string
	Extra     interface{}
}

// Record stores an entry. A failed write is logged and otherwise ignored so
// the request that triggered it is unaffected.
func (s *AuditLogService) Record(ctx context.Context, entry AuditEntry) {
	var extraStr string
	if entry.Extra != nil {
		if b, err := json.Marshal(entry.Extra); err == nil {
			extraStr = string(b)
		}
	}
	if entry.Level == "" {
		entry.Level = "info"
	}

	log := &models.AuditLog{
		Level:     entry.Level,
		Module:    entry.Module,
		Action:    entry.Action,
		Message:   entry.Message,
		UserID:    entry.UserID,
		IP:        entry.IP,
		UserAgent: truncate(entry.UserAgent, 500),
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		logger.Warn().Err(err).Str("module", entry.Module).Str("action", entry.Action).Msg("failed to write audit log")
	}
}

type AuditLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	UserID    uint   `form:"user_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type AuditLogListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.AuditLog `json:"items"`
}

func (s *AuditLogService) List(ctx context.Context, req *AuditLogListRequest) (*AuditLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	return &AuditLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes logs older than the specified number of days
// Returns the number of deleted records
func (s *AuditLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffTime).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup audit logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}
