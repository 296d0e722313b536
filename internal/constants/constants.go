package constants

// 预订状态常量
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCanceled  = "canceled"
)

// 预订支付状态常量
const (
	BookingPaymentUnpaid        = "unpaid"
	BookingPaymentPaid          = "paid"
	BookingPaymentRefunded      = "refunded"
	BookingPaymentRefundPending = "refund_pending" // 仅用于读视图，不落库
)

// 支付交易状态常量
const (
	TransactionStatusInitiated = "initiated"
	TransactionStatusPaid      = "paid"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

// 支付网关常量
const (
	GatewayMomo  = "momo"
	GatewayVnpay = "vnpay"
)

// 货币
const CurrencyVND = "VND"

// 退款申请状态常量
const (
	RefundStatusPending   = "pending"
	RefundStatusConfirmed = "confirmed"
	RefundStatusRejected  = "rejected"
)

// 提现申请状态常量
const (
	PayoutStatusPending  = "pending"
	PayoutStatusApproved = "approved"
	PayoutStatusPaid     = "paid"
	PayoutStatusRejected = "rejected"
)

// 支付通知处理结论
const (
	NotifyVerdictApplied          = "applied"
	NotifyVerdictDuplicate        = "duplicate"
	NotifyVerdictIgnored          = "ignored"
	NotifyVerdictPending          = "pending"
	NotifyVerdictUnknown          = "unknown_transaction"
	NotifyVerdictAmountMismatch   = "amount_mismatch"
	NotifyVerdictSignatureInvalid = "signature_invalid"
)

// 支付异常类型
const (
	AnomalyUnknownTransaction = "unknown_transaction"
	AnomalyAmountMismatch     = "amount_mismatch"
	AnomalyConflictingOutcome = "conflicting_outcome"
	AnomalyPayoutOverdrawn    = "payout_overdrawn"
)

// 交易失败原因
const (
	FailureReasonGateway      = "gateway_failure"
	FailureReasonOperatorVoid = "operator_void"
)

// 用户角色（来自认证服务签发的令牌）
const (
	RoleCustomer = "customer"
	RoleGuide    = "guide"
)

// 站内通知事件类型
const (
	NotificationEventBookingPaid     = "booking_paid"
	NotificationEventBookingRefunded = "booking_refunded"
	NotificationEventPayoutPaid      = "payout_paid"
	NotificationEventPayoutRejected  = "payout_rejected"
)

// 队列与任务
const (
	QueueCritical           = "critical"
	QueueDefault            = "default"
	QueueLow                = "low"
	TaskBookingPaid         = "booking:paid"
	TaskBookingRefunded     = "booking:refunded"
	TaskPayoutStatusChanged = "payout:status_changed"
)

// MoMo 常量
const (
	MomoResultSuccess     = 0
	MomoResultAuthorized  = 9000
	MomoRequestTypeWallet = "captureWallet"
)

// VNPay IPN 应答码
const (
	VnpayRspSuccess          = "00"
	VnpayRspOrderNotFound    = "01"
	VnpayRspAlreadyConfirmed = "02"
	VnpayRspInvalidAmount    = "04"
	VnpayRspInvalidSignature = "97"
	VnpayRspUnknownError     = "99"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
