package admin

import (
	handlershared "github.com/tourbook-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.CurrentAdminID(c)
}
