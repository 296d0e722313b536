package shared

import (
	"errors"

	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// CommonErrorRules 各接口共用的业务错误映射，具体接口可前置更精确的规则。
var CommonErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrGatewayUnsupported, Code: response.CodeBadRequest, Key: "error.gateway_invalid"},
	{Target: service.ErrGatewayConfigInvalid, Code: response.CodeBadRequest, Key: "error.gateway_config_invalid"},
	{Target: service.ErrDateRangeInvalid, Code: response.CodeBadRequest, Key: "error.date_range_invalid"},
	{Target: service.ErrRefundAmountInvalid, Code: response.CodeBadRequest, Key: "error.refund_amount_invalid"},
	{Target: service.ErrPayoutAmountInvalid, Code: response.CodeBadRequest, Key: "error.payout_amount_invalid"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Key: "error.forbidden"},
	{Target: service.ErrBookingNotFound, Code: response.CodeNotFound, Key: "error.booking_not_found"},
	{Target: service.ErrTransactionMissing, Code: response.CodeNotFound, Key: "error.transaction_not_found"},
	{Target: service.ErrRefundNotFound, Code: response.CodeNotFound, Key: "error.refund_not_found"},
	{Target: service.ErrPayoutNotFound, Code: response.CodeNotFound, Key: "error.payout_not_found"},
	{Target: service.ErrAnomalyNotFound, Code: response.CodeNotFound, Key: "error.anomaly_not_found"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.not_found"},
	{Target: service.ErrCheckoutInFlight, Code: response.CodeConflict, Key: "error.checkout_in_flight"},
	{Target: service.ErrDuplicateRefund, Code: response.CodeConflict, Key: "error.refund_duplicate"},
	{Target: service.ErrRefundNotAllowed, Code: response.CodeConflict, Key: "error.refund_not_allowed"},
	{Target: service.ErrInvalidState, Code: response.CodeConflict, Key: "error.conflict"},
	{Target: service.ErrConflict, Code: response.CodeConflict, Key: "error.conflict"},
	{Target: service.ErrInsufficientBalance, Code: response.CodeUnprocessable, Key: "error.payout_insufficient"},
	{Target: service.ErrConfigNotFound, Code: response.CodeServiceUnavailable, Key: "error.gateway_unavailable"},
	{Target: service.ErrGatewayRequestFailed, Code: response.CodeInternal, Key: "error.gateway_request_failed"},
}

// InvalidStateRule 以指定消息键覆盖状态冲突的通用提示。
func InvalidStateRule(key string) MappedError {
	return MappedError{Target: service.ErrInvalidState, Code: response.CodeConflict, Key: key}
}

// RespondMappedError 按规则顺序匹配业务错误，未命中时以 500 响应并记录原始错误。
func RespondMappedError(c *gin.Context, err error, fallbackKey string, overrides ...MappedError) {
	for _, rule := range overrides {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	for _, rule := range CommonErrorRules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, response.CodeInternal, fallbackKey, err)
}
