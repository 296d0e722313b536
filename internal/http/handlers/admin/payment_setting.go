package admin

import (
	"sort"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentSettingRequest 网关配置更新请求；密钥字段留空或提交掩码表示沿用旧值
type PaymentSettingRequest struct {
	IsActive *bool                  `json:"is_active"`
	Config   map[string]interface{} `json:"config" binding:"required"`
}

// ListPaymentSettings 列出网关配置（密钥已掩码）
func (h *Handler) ListPaymentSettings(c *gin.Context) {
	items, err := h.GatewayConfigService.ListMasked()
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.Success(c, items)
}

// UpsertPaymentSetting 保存网关配置，保存后立即失效进程内缓存
func (h *Handler) UpsertPaymentSetting(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req PaymentSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	setting, err := h.GatewayConfigService.Upsert(service.UpsertGatewaySettingInput{
		Gateway:  c.Param("gateway"),
		IsActive: isActive,
		Config:   req.Config,
		AdminID:  adminID,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	// 只记录字段名，不落密钥
	fields := make([]string, 0, len(req.Config))
	for key := range req.Config {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionSettingUpsert,
		TargetType:      auditTargetPaymentSetting,
		TargetKey:       setting.Gateway,
		Detail:          auditDetail("is_active", isActive, "fields", fields),
	})
	response.Success(c, setting)
}
