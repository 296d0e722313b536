package public

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/i18n"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/payment/vnpay"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxNotifyBodyBytes  = 64 << 10
	returnStatusInvalid = "invalid"
)

// momoAck MoMo IPN 的错误应答体，成功时仅返回 204
type momoAck struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// PaymentReturnResponse 同步跳转的 JSON 结果
type PaymentReturnResponse struct {
	*service.ReturnView
	Message string `json:"message"`
}

// MomoIPN MoMo 异步通知：验签通过即以 204 确认，签名错误返回 400，内部错误返回 500 让网关重试
func (h *Handler) MomoIPN(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBodyBytes))
	if err != nil {
		log.Warnw("payment_ipn_body_read_failed", "gateway", constants.GatewayMomo, "error", err)
		c.JSON(http.StatusBadRequest, momoAck{ResultCode: 1, Message: "invalid body"})
		return
	}
	var fields map[string]interface{}
	if json.Unmarshal(body, &fields) == nil {
		log.Infow("payment_ipn_received",
			"gateway", constants.GatewayMomo,
			"client_ip", c.ClientIP(),
			"payload", logger.Redact(fields),
		)
	}

	outcome, err := h.ReconcileService.HandleNotification(c.Request.Context(), service.NotificationInput{
		Gateway: constants.GatewayMomo,
		Body:    body,
	})
	switch {
	case err == nil || service.IsReconcileAnomaly(err):
		logNotifyOutcome(c, outcome, err)
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, momoAck{ResultCode: 1, Message: "invalid signature"})
	default:
		log.Errorw("payment_ipn_failed", "gateway", constants.GatewayMomo, "error", err)
		c.JSON(http.StatusInternalServerError, momoAck{ResultCode: 99, Message: "internal error"})
	}
}

// VnpayIPN VNPay 异步通知，始终以 HTTP 200 + RspCode 应答
func (h *Handler) VnpayIPN(c *gin.Context) {
	query := c.Request.URL.Query()
	requestLog(c).Infow("payment_ipn_received",
		"gateway", constants.GatewayVnpay,
		"client_ip", c.ClientIP(),
		"payload", logger.RedactValues(query),
	)

	outcome, err := h.ReconcileService.HandleNotification(c.Request.Context(), service.NotificationInput{
		Gateway: constants.GatewayVnpay,
		Query:   query,
	})
	if err == nil || service.IsReconcileAnomaly(err) {
		logNotifyOutcome(c, outcome, err)
	} else if !errors.Is(err, service.ErrSignatureInvalid) {
		requestLog(c).Errorw("payment_ipn_failed", "gateway", constants.GatewayVnpay, "error", err)
	}
	c.JSON(http.StatusOK, vnpay.NewAck(vnpayRspCode(err)))
}

func vnpayRspCode(err error) string {
	switch {
	case err == nil:
		return constants.VnpayRspSuccess
	case errors.Is(err, service.ErrUnknownTransaction):
		return constants.VnpayRspOrderNotFound
	case errors.Is(err, service.ErrTransactionClosed):
		return constants.VnpayRspAlreadyConfirmed
	case errors.Is(err, service.ErrAmountMismatch):
		return constants.VnpayRspInvalidAmount
	case errors.Is(err, service.ErrSignatureInvalid):
		return constants.VnpayRspInvalidSignature
	}
	return constants.VnpayRspUnknownError
}

func logNotifyOutcome(c *gin.Context, outcome *service.NotificationOutcome, err error) {
	if outcome == nil {
		return
	}
	log := requestLog(c).With("gateway", outcome.Gateway, "txn_ref", outcome.TxnRef, "verdict", outcome.Verdict)
	if err != nil {
		log.Warnw("payment_ipn_acknowledged_anomaly", "error", err)
		return
	}
	log.Infow("payment_ipn_acknowledged")
}

// MomoReturn MoMo 同步跳转
func (h *Handler) MomoReturn(c *gin.Context) {
	h.paymentReturn(c, constants.GatewayMomo)
}

// VnpayReturn VNPay 同步跳转
func (h *Handler) VnpayReturn(c *gin.Context) {
	h.paymentReturn(c, constants.GatewayVnpay)
}

// paymentReturn 只读展示当前交易状态，不推进任何状态
func (h *Handler) paymentReturn(c *gin.Context, gateway string) {
	view, err := h.ReconcileService.ResolveReturn(c.Request.Context(), service.ReturnInput{
		Gateway: gateway,
		Query:   c.Request.URL.Query(),
	})
	status := returnStatusInvalid
	if err != nil {
		requestLog(c).Warnw("payment_return_rejected", "gateway", gateway, "error", err)
	} else {
		status = view.Status
	}

	if target := strings.TrimSpace(h.Config.Payment.ReturnRedirectURL); target != "" {
		c.Redirect(http.StatusFound, buildReturnRedirect(target, gateway, status, view))
		return
	}
	locale := i18n.ResolveLocale(c)
	if err != nil {
		response.Error(c, response.CodeBadRequest, i18n.T(locale, "payment.return."+returnStatusInvalid))
		return
	}
	response.Success(c, PaymentReturnResponse{
		ReturnView: view,
		Message:    i18n.T(locale, "payment.return."+status),
	})
}

func buildReturnRedirect(target, gateway, status string, view *service.ReturnView) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	query := parsed.Query()
	query.Set("gateway", gateway)
	query.Set("status", status)
	if view != nil && view.BookingNo != "" {
		query.Set("booking_no", view.BookingNo)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
