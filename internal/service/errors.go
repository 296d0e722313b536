package service

import "errors"

// 通用
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("resource not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("concurrent modification")
)

// 网关配置
var (
	ErrGatewayUnsupported   = errors.New("payment gateway unsupported")
	ErrConfigNotFound       = errors.New("payment gateway config not found")
	ErrGatewayConfigInvalid = errors.New("payment gateway config invalid")
	ErrSettingSealFailed    = errors.New("payment setting secret seal failed")
)

// 结账
var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInvalidState         = errors.New("invalid state for operation")
	ErrCheckoutInFlight     = errors.New("checkout already in flight")
	ErrGatewayRequestFailed = errors.New("payment gateway request failed")
)

// 通知对账
var (
	ErrSignatureInvalid   = errors.New("notification signature invalid")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrAmountMismatch     = errors.New("notification amount mismatch")
	ErrTransactionClosed  = errors.New("transaction already closed with another outcome")
	ErrTransactionMissing = errors.New("payment transaction not found")
)

// 退款
var (
	ErrRefundNotFound      = errors.New("refund request not found")
	ErrRefundNotAllowed    = errors.New("transaction not refundable")
	ErrRefundAmountInvalid = errors.New("refund amount invalid")
	ErrDuplicateRefund     = errors.New("refund request already pending")
)

// 提现
var (
	ErrPayoutNotFound      = errors.New("payout request not found")
	ErrPayoutAmountInvalid = errors.New("payout amount invalid")
	ErrInsufficientBalance = errors.New("insufficient payout balance")
)

// 营收
var (
	ErrDateRangeInvalid = errors.New("date range invalid")
	ErrAnomalyNotFound  = errors.New("payment anomaly not found")
)
