package admin

import (
	"strings"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListToursRevenue 按营收降序列出各线路
func (h *Handler) ListToursRevenue(c *gin.Context) {
	query, ok := revenueQuery(c)
	if !ok {
		return
	}
	query.Page, query.PageSize = handlershared.QueryPagination(c)
	result, err := h.RevenueService.ListToursRevenue(c.Request.Context(), query)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, result.Items, response.NewPagination(result.Page, result.PageSize, result.Total))
}

// GetTourRevenue 单条线路营收，group_by=date 时附带按日明细
func (h *Handler) GetTourRevenue(c *gin.Context) {
	tourID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	query, ok := revenueQuery(c)
	if !ok {
		return
	}
	detail, err := h.RevenueService.GetTourRevenue(c.Request.Context(), tourID, query, strings.TrimSpace(c.Query("group_by")))
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.Success(c, detail)
}

func revenueQuery(c *gin.Context) (service.RevenueQuery, bool) {
	from, err := handlershared.QueryDate(c, "from")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.date_range_invalid", nil)
		return service.RevenueQuery{}, false
	}
	to, err := handlershared.QueryDate(c, "to")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.date_range_invalid", nil)
		return service.RevenueQuery{}, false
	}
	return service.RevenueQuery{From: from, To: to}, true
}
