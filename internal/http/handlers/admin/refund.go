package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/repository"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RefundConfirmRequest 确认退款
type RefundConfirmRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// RefundRejectRequest 驳回退款，必须填写原因
type RefundRejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

var refundStateRule = handlershared.InvalidStateRule("error.refund_state_invalid")

// ListRefunds 退款申请列表
func (h *Handler) ListRefunds(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	transactionID, _ := strconv.ParseUint(c.Query("transaction_id"), 10, 64)
	customerID, _ := strconv.ParseUint(c.Query("customer_id"), 10, 64)
	items, total, err := h.RefundService.List(repository.RefundListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        strings.TrimSpace(c.Query("status")),
		TransactionID: uint(transactionID),
		CustomerID:    uint(customerID),
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// ConfirmRefund 确认退款：交易与预订同时进入已退款
func (h *Handler) ConfirmRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req RefundConfirmRequest
	if err := handlershared.BindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	refund, err := h.RefundService.Confirm(c.Request.Context(), id, adminID, req.Note)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal", refundStateRule)
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionRefundConfirm,
		TargetType:      auditTargetRefund,
		TargetID:        id,
		Detail:          auditDetail("amount", refund.Amount.String(), "note", req.Note),
	})
	response.Success(c, refund)
}

// RejectRefund 驳回退款申请
func (h *Handler) RejectRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req RefundRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	refund, err := h.RefundService.Reject(id, adminID, req.Reason)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal", refundStateRule)
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionRefundReject,
		TargetType:      auditTargetRefund,
		TargetID:        id,
		Detail:          auditDetail("reason", req.Reason),
	})
	response.Success(c, refund)
}
