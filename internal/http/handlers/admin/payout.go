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

// PayoutRejectRequest 驳回提现，必须填写原因
type PayoutRejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PayoutMarkPaidRequest 标记已打款，可附银行流水号
type PayoutMarkPaidRequest struct {
	Reference string `json:"reference" binding:"max=128"`
}

var payoutErrorRules = []handlershared.MappedError{
	handlershared.InvalidStateRule("error.payout_state_invalid"),
	{Target: service.ErrConflict, Code: response.CodeConflict, Key: "error.payout_conflict"},
}

// ListPayouts 提现申请列表
func (h *Handler) ListPayouts(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	guideID, _ := strconv.ParseUint(c.Query("guide_id"), 10, 64)
	items, total, err := h.PayoutService.List(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		GuideID:  uint(guideID),
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// ApprovePayout 批准提现
func (h *Handler) ApprovePayout(c *gin.Context) {
	adminID, id, ok := payoutTarget(c)
	if !ok {
		return
	}
	payout, err := h.PayoutService.Approve(c.Request.Context(), id, adminID)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal", payoutErrorRules...)
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionPayoutApprove,
		TargetType:      auditTargetPayout,
		TargetID:        id,
		Detail:          auditDetail("amount", payout.Amount.String(), "guide_id", payout.GuideID),
	})
	response.Success(c, payout)
}

// RejectPayout 驳回提现并释放占用额度
func (h *Handler) RejectPayout(c *gin.Context) {
	adminID, id, ok := payoutTarget(c)
	if !ok {
		return
	}
	var req PayoutRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	payout, err := h.PayoutService.Reject(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal", payoutErrorRules...)
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionPayoutReject,
		TargetType:      auditTargetPayout,
		TargetID:        id,
		Detail:          auditDetail("reason", req.Reason),
	})
	response.Success(c, payout)
}

// MarkPayoutPaid 标记提现已打款
func (h *Handler) MarkPayoutPaid(c *gin.Context) {
	adminID, id, ok := payoutTarget(c)
	if !ok {
		return
	}
	var req PayoutMarkPaidRequest
	if err := handlershared.BindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	payout, err := h.PayoutService.MarkPaid(c.Request.Context(), id, adminID, req.Reference)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal", payoutErrorRules...)
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionPayoutMarkPaid,
		TargetType:      auditTargetPayout,
		TargetID:        id,
		Detail:          auditDetail("amount", payout.Amount.String(), "reference", req.Reference),
	})
	response.Success(c, payout)
}

func payoutTarget(c *gin.Context) (uint, uint, bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, 0, false
	}
	return adminID, id, true
}
