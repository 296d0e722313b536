package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tourbook-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskBookingPaid 预订支付成功后的回执任务
	TaskBookingPaid = constants.TaskBookingPaid
	// TaskBookingRefunded 退款确认后的回执任务
	TaskBookingRefunded = constants.TaskBookingRefunded
	// TaskPayoutStatusChanged 提现状态变更通知任务
	TaskPayoutStatusChanged = constants.TaskPayoutStatusChanged
)

// BookingPaidPayload 支付成功任务载荷
type BookingPaidPayload struct {
	BookingID     uint      `json:"booking_id"`
	BookingNo     string    `json:"booking_no"`
	TransactionID uint      `json:"transaction_id"`
	CustomerID    uint      `json:"customer_id"`
	GuideID       uint      `json:"guide_id"`
	Gateway       string    `json:"gateway"`
	TxnRef        string    `json:"txn_ref"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// BookingRefundedPayload 退款确认任务载荷
type BookingRefundedPayload struct {
	BookingID     uint   `json:"booking_id"`
	BookingNo     string `json:"booking_no"`
	TransactionID uint   `json:"transaction_id"`
	RefundID      uint   `json:"refund_id"`
	CustomerID    uint   `json:"customer_id"`
	Amount        string `json:"amount"`
}

// PayoutStatusChangedPayload 提现状态变更任务载荷
type PayoutStatusChangedPayload struct {
	PayoutID uint   `json:"payout_id"`
	GuideID  uint   `json:"guide_id"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
}

// NewBookingPaidTask 创建支付成功任务，任务 ID 按交易去重
func NewBookingPaidTask(payload BookingPaidPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingPaid, body,
		asynq.TaskID(fmt.Sprintf("booking-paid-%d", payload.TransactionID)),
		asynq.MaxRetry(10),
	), nil
}

// NewBookingRefundedTask 创建退款确认任务，任务 ID 按退款申请去重
func NewBookingRefundedTask(payload BookingRefundedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingRefunded, body,
		asynq.TaskID(fmt.Sprintf("booking-refunded-%d", payload.RefundID)),
		asynq.MaxRetry(10),
	), nil
}

// NewPayoutStatusChangedTask 创建提现状态变更任务
func NewPayoutStatusChangedTask(payload PayoutStatusChangedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayoutStatusChanged, body,
		asynq.TaskID(fmt.Sprintf("payout-%d-%s", payload.PayoutID, payload.Status)),
		asynq.MaxRetry(10),
	), nil
}
