package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type AuditLogHandler struct {
	auditLogService *services.AuditLogService
}

func NewAuditLogHandler(auditLogService *services.AuditLogService) *AuditLogHandler {
	return &AuditLogHandler{auditLogService: auditLogService}
}

// List pages through recorded API mutations
// GET /api/audit-logs
func (h *AuditLogHandler) List(c *gin.Context) {
	var req services.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.auditLogService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
