package admin

import (
	"github.com/tourbook-next/internal/authz"
	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminRolesRequest 覆盖设置管理员角色
type AdminRolesRequest struct {
	Roles []string `json:"roles"`
}

// PolicyRequest 角色接口权限的授予与撤销
type PolicyRequest struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// ListAuthzRoles 角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, roles)
}

// respondAuthzError 输入问题返回 400，其余按内部错误处理
func respondAuthzError(c *gin.Context, err error) {
	if authz.IsValidationError(err) {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	respondError(c, response.CodeInternal, "error.internal", err)
}

// GetAuthzAdminRoles 查询管理员落库角色（令牌角色之外的补充授权）
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(id)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, gin.H{"admin_id": id, "roles": roles})
}

// SetAuthzAdminRoles 覆盖设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	operatorID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req AdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	roles, err := h.AuthzService.SetAdminRoles(id, req.Roles)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	handlershared.RequestLog(c).Infow("admin_authz_roles_updated", "target_admin_id", id, "roles", roles)
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: operatorID,
		Action:          service.AuditActionAdminRolesSet,
		TargetType:      auditTargetAdmin,
		TargetID:        id,
		Detail:          auditDetail("roles", roles),
	})
	response.Success(c, gin.H{"admin_id": id, "roles": roles})
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	operatorID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondAuthzError(c, err)
		return
	}
	handlershared.RequestLog(c).Infow("admin_authz_policy_granted", "role", req.Role, "object", req.Object, "action", req.Action)
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: operatorID,
		Action:          service.AuditActionAuthzPolicyGrant,
		TargetType:      auditTargetRole,
		TargetKey:       req.Role,
		Detail:          auditDetail("object", req.Object, "method", req.Action),
	})
	response.Success(c, req)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	operatorID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	removed, err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	if !removed {
		respondError(c, response.CodeNotFound, "error.not_found", nil)
		return
	}
	handlershared.RequestLog(c).Infow("admin_authz_policy_revoked", "role", req.Role, "object", req.Object, "action", req.Action)
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: operatorID,
		Action:          service.AuditActionAuthzPolicyRevoke,
		TargetType:      auditTargetRole,
		TargetKey:       req.Role,
		Detail:          auditDetail("object", req.Object, "method", req.Action),
	})
	response.Success(c, req)
}
