package public

import "github.com/tourbook-next/internal/provider"

// Handler 前台接口处理器入口（网关回调、顾客与导游接口）
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
