package shared

import (
	"github.com/tourbook-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入、处理器读取的上下文键
const (
	CtxRequestID    = "request_id"
	CtxUserID       = "user_id"
	CtxUserRole     = "user_role"
	CtxAdminID      = "admin_id"
	CtxAdminRoles   = "admin_roles"
	CtxAdminIsSuper = "admin_is_super"
)

// Caller 终端用户（顾客或导游）身份
type Caller struct {
	UserID uint
	Role   string
}

// CurrentCaller 读取令牌中的用户身份，缺失时直接响应 401
func CurrentCaller(c *gin.Context) (Caller, bool) {
	id, ok := contextUint(c, CtxUserID)
	if !ok {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return Caller{}, false
	}
	return Caller{UserID: id, Role: c.GetString(CtxUserRole)}, true
}

// CurrentAdminID 读取操作员 ID，缺失时直接响应 401
func CurrentAdminID(c *gin.Context) (uint, bool) {
	id, ok := contextUint(c, CtxAdminID)
	if !ok {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	return id, true
}

// RequestID 当前请求 ID
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(CtxRequestID)
}

func contextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}
