package shared

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// BindOptionalJSON 绑定可省略的 JSON 请求体，空请求体按零值处理后仍执行校验。
func BindOptionalJSON(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
