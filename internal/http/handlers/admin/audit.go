package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/repository"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// 审计目标类型
const (
	auditTargetPaymentSetting = "payment_setting"
	auditTargetTransaction    = "payment_transaction"
	auditTargetAnomaly        = "payment_anomaly"
	auditTargetRefund         = "refund_request"
	auditTargetPayout         = "payout_request"
	auditTargetAdmin          = "admin"
	auditTargetRole           = "role"
)

// ListOperatorAuditLogs 运营审计日志
func (h *Handler) ListOperatorAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	createdFrom, err := handlershared.QueryDate(c, "created_from")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	createdTo, err := handlershared.QueryDate(c, "created_to")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	operatorID, _ := strconv.ParseUint(c.Query("operator_admin_id"), 10, 64)
	targetID, _ := strconv.ParseUint(c.Query("target_id"), 10, 64)

	items, total, err := h.AuditService.List(repository.OperatorAuditListFilter{
		Page:            page,
		PageSize:        pageSize,
		OperatorAdminID: uint(operatorID),
		Action:          strings.TrimSpace(c.Query("action")),
		TargetType:      strings.TrimSpace(c.Query("target_type")),
		TargetID:        uint(targetID),
		CreatedFrom:     createdFrom,
		CreatedTo:       createdTo,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// recordAudit 操作已成功提交后记审计，写入失败只告警不影响响应
func (h *Handler) recordAudit(c *gin.Context, input service.OperatorAuditInput) {
	if h == nil || h.AuditService == nil {
		return
	}
	if input.RequestID == "" {
		input.RequestID = handlershared.RequestID(c)
	}
	if err := h.AuditService.Record(input); err != nil {
		handlershared.RequestLog(c).Warnw("admin_audit_record_failed",
			"action", input.Action,
			"target_type", input.TargetType,
			"target_id", input.TargetID,
			"error", err,
		)
	}
}

func auditDetail(kv ...interface{}) models.JSON {
	detail := models.JSON{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || key == "" {
			continue
		}
		if s, isString := kv[i+1].(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		detail[key] = kv[i+1]
	}
	if len(detail) == 0 {
		return nil
	}
	return detail
}
