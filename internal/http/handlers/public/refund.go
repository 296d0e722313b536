package public

import (
	"strings"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/http/validation"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RefundCreateRequest 退款申请请求体，金额为空表示全额
type RefundCreateRequest struct {
	TransactionID uint   `json:"transaction_id" binding:"required"`
	Amount        string `json:"amount" binding:"omitempty,vnd_amount"`
	Reason        string `json:"reason" binding:"required,max=500"`
}

// CreateRefund 预订所有人发起退款申请
func (h *Handler) CreateRefund(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req RefundCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	amount := decimal.Zero
	if strings.TrimSpace(req.Amount) != "" {
		parsed, ok := validation.ParseVNDAmount(req.Amount)
		if !ok {
			respondError(c, response.CodeBadRequest, "error.refund_amount_invalid", nil)
			return
		}
		amount = parsed
	}

	refund, err := h.RefundService.Request(service.RefundRequestInput{
		TransactionID: req.TransactionID,
		CustomerID:    userID,
		Amount:        amount,
		Reason:        req.Reason,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.Success(c, refund)
}
