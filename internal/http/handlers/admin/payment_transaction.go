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

// AnomalyResolveRequest 处理对账异常
type AnomalyResolveRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

// ListPaymentTransactions 支付交易列表
func (h *Handler) ListPaymentTransactions(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	createdFrom, err := handlershared.QueryDate(c, "created_from")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	createdTo, err := handlershared.QueryDate(c, "created_to")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	bookingID, _ := strconv.ParseUint(c.Query("booking_id"), 10, 64)

	items, total, err := h.ReconcileService.ListTransactions(repository.TransactionListFilter{
		Page:        page,
		PageSize:    pageSize,
		BookingID:   uint(bookingID),
		Gateway:     strings.TrimSpace(c.Query("gateway")),
		Status:      strings.TrimSpace(c.Query("status")),
		TxnRef:      strings.TrimSpace(c.Query("txn_ref")),
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// VoidPaymentTransaction 作废进行中的交易，释放预订
func (h *Handler) VoidPaymentTransaction(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	txn, err := h.ReconcileService.VoidTransaction(id, adminID)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal",
			handlershared.InvalidStateRule("error.transaction_not_voidable"))
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionTransactionVoid,
		TargetType:      auditTargetTransaction,
		TargetID:        id,
		TargetKey:       txn.TxnRef,
	})
	response.Success(c, txn)
}

// ListPaymentAnomalies 对账异常列表，resolved 为空时返回全部
func (h *Handler) ListPaymentAnomalies(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	filter := repository.AnomalyListFilter{
		Page:     page,
		PageSize: pageSize,
		Gateway:  strings.TrimSpace(c.Query("gateway")),
		Kind:     strings.TrimSpace(c.Query("kind")),
	}
	if raw := strings.TrimSpace(c.Query("resolved")); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		filter.Resolved = &resolved
	}
	items, total, err := h.ReconcileService.ListAnomalies(filter)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// ResolvePaymentAnomaly 标记对账异常已处理
func (h *Handler) ResolvePaymentAnomaly(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req AnomalyResolveRequest
	if err := handlershared.BindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	anomaly, err := h.ReconcileService.ResolveAnomaly(id, adminID, req.Note)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	h.recordAudit(c, service.OperatorAuditInput{
		OperatorAdminID: adminID,
		Action:          service.AuditActionAnomalyResolve,
		TargetType:      auditTargetAnomaly,
		TargetID:        id,
		Detail:          auditDetail("note", req.Note),
	})
	response.Success(c, anomaly)
}
