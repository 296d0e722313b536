package public

import (
	"strings"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/http/validation"
	"github.com/tourbook-next/internal/repository"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PayoutCreateRequest 导游提现请求体
type PayoutCreateRequest struct {
	Amount string `json:"amount" binding:"required,vnd_amount"`
	Note   string `json:"note" binding:"max=500"`
}

// CreatePayout 导游申请提现，额度在申请时即被占用
func (h *Handler) CreatePayout(c *gin.Context) {
	guideID, ok := getUserID(c)
	if !ok {
		return
	}
	var req PayoutCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	amount, ok := validation.ParseVNDAmount(req.Amount)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.payout_amount_invalid", nil)
		return
	}
	payout, err := h.PayoutService.RequestPayout(guideID, amount, req.Note)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal",
			handlershared.MappedError{Target: service.ErrConflict, Code: response.CodeConflict, Key: "error.payout_conflict"})
		return
	}
	response.Success(c, payout)
}

// ListMyPayouts 导游查看自己的提现记录
func (h *Handler) ListMyPayouts(c *gin.Context) {
	guideID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	items, total, err := h.PayoutService.List(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		GuideID:  guideID,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// GetPayoutBalance 导游查看可提现余额
func (h *Handler) GetPayoutBalance(c *gin.Context) {
	guideID, ok := getUserID(c)
	if !ok {
		return
	}
	balance, err := h.PayoutService.Balance(guideID)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.Success(c, balance)
}
