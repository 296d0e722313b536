package public

import (
	handlershared "github.com/tourbook-next/internal/http/handlers/shared"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 发起支付请求体
type CheckoutRequest struct {
	Gateway string `json:"gateway" binding:"required,gateway"`
}

// CreateCheckout 为预订发起支付；已有进行中的同网关交易时直接复用
func (h *Handler) CreateCheckout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	bookingID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	result, err := h.CheckoutService.Initiate(c.Request.Context(), service.CheckoutInput{
		BookingID:  bookingID,
		CustomerID: userID,
		Gateway:    req.Gateway,
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal",
			handlershared.InvalidStateRule("error.booking_not_payable"))
		return
	}
	response.Success(c, result)
}

// GetBookingPayment 顾客查看预订的支付状态
func (h *Handler) GetBookingPayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	bookingID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	view, err := h.BookingPaymentService.GetView(bookingID, userID)
	if err != nil {
		handlershared.RespondMappedError(c, err, "error.internal")
		return
	}
	response.Success(c, view)
}
