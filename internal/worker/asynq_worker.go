package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/i18n"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/provider"
	"github.com/tourbook-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
	locale string
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
		locale:    i18n.LocaleViVN,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskBookingPaid, c.handleBookingPaid)
	mux.HandleFunc(queue.TaskBookingRefunded, c.handleBookingRefunded)
	mux.HandleFunc(queue.TaskPayoutStatusChanged, c.handlePayoutStatusChanged)
}

func (c *Consumer) handleBookingPaid(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_booking_paid_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.BookingPaidPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_booking_paid_unmarshal_failed", "error", err)
		return err
	}
	if payload.TransactionID == 0 || payload.CustomerID == 0 {
		logger.Debugw("worker_booking_paid_skip_invalid_payload", "transaction_id", payload.TransactionID)
		return nil
	}
	title := i18n.Sprintf(c.locale, "notification.booking_paid", payload.BookingNo)
	data := models.JSON{
		"booking_id":  payload.BookingID,
		"booking_no":  payload.BookingNo,
		"gateway":     payload.Gateway,
		"txn_ref":     payload.TxnRef,
		"amount":      payload.Amount,
		"paid_at":     payload.PaidAt,
		"transaction_id": payload.TransactionID,
	}
	// 顾客收据
	if err := c.notify(&models.Notification{
		UserID:    payload.CustomerID,
		EventType: constants.NotificationEventBookingPaid,
		BizType:   "booking",
		BizID:     payload.BookingID,
		Title:     title,
		Data:      data,
		DedupKey:  fmt.Sprintf("booking_paid:%d:customer", payload.TransactionID),
	}); err != nil {
		return err
	}
	if payload.GuideID == 0 {
		return nil
	}
	return c.notify(&models.Notification{
		UserID:    payload.GuideID,
		EventType: constants.NotificationEventBookingPaid,
		BizType:   "booking",
		BizID:     payload.BookingID,
		Title:     title,
		Data:      data,
		DedupKey:  fmt.Sprintf("booking_paid:%d:guide", payload.TransactionID),
	})
}

func (c *Consumer) handleBookingRefunded(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_booking_refunded_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.BookingRefundedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_booking_refunded_unmarshal_failed", "error", err)
		return err
	}
	if payload.RefundID == 0 || payload.CustomerID == 0 {
		logger.Debugw("worker_booking_refunded_skip_invalid_payload", "refund_id", payload.RefundID)
		return nil
	}
	return c.notify(&models.Notification{
		UserID:    payload.CustomerID,
		EventType: constants.NotificationEventBookingRefunded,
		BizType:   "refund",
		BizID:     payload.RefundID,
		Title:     i18n.Sprintf(c.locale, "notification.booking_refunded", payload.BookingNo),
		Data: models.JSON{
			"booking_id":     payload.BookingID,
			"booking_no":     payload.BookingNo,
			"transaction_id": payload.TransactionID,
			"amount":         payload.Amount,
		},
		DedupKey: fmt.Sprintf("booking_refunded:%d", payload.RefundID),
	})
}

func (c *Consumer) handlePayoutStatusChanged(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payout_status_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PayoutStatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payout_status_unmarshal_failed", "error", err)
		return err
	}
	if payload.PayoutID == 0 || payload.GuideID == 0 {
		logger.Debugw("worker_payout_status_skip_invalid_payload", "payout_id", payload.PayoutID)
		return nil
	}
	var eventType, key string
	switch payload.Status {
	case constants.PayoutStatusPaid:
		eventType, key = constants.NotificationEventPayoutPaid, "notification.payout_paid"
	case constants.PayoutStatusRejected:
		eventType, key = constants.NotificationEventPayoutRejected, "notification.payout_rejected"
	default:
		logger.Debugw("worker_payout_status_skip_status", "payout_id", payload.PayoutID, "status", payload.Status)
		return nil
	}
	return c.notify(&models.Notification{
		UserID:    payload.GuideID,
		EventType: eventType,
		BizType:   "payout",
		BizID:     payload.PayoutID,
		Title:     i18n.Sprintf(c.locale, key, payload.PayoutID),
		Data:      models.JSON{"status": payload.Status, "amount": payload.Amount},
		DedupKey:  fmt.Sprintf("payout_%s:%d", payload.Status, payload.PayoutID),
	})
}

const staleCheckoutScanLimit = 200

// ReportStaleCheckouts 记录已过期仍占用预订的支付会话，交由运营作废；不改变交易状态
func (c *Consumer) ReportStaleCheckouts(now time.Time) (int, error) {
	if c == nil || c.Container == nil || c.TransactionRepo == nil {
		return 0, nil
	}
	txns, err := c.TransactionRepo.ListStaleInitiated(now, staleCheckoutScanLimit)
	if err != nil {
		return 0, err
	}
	for _, txn := range txns {
		logger.Warnw("worker_stale_checkout",
			"transaction_id", txn.ID,
			"booking_id", txn.BookingID,
			"gateway", txn.Gateway,
			"txn_ref", txn.TxnRef,
			"expired_at", txn.ExpiresAt,
		)
	}
	if len(txns) > 0 {
		logger.Infow("worker_stale_checkout_summary", "count", len(txns), "limit", staleCheckoutScanLimit)
	}
	return len(txns), nil
}

// notify 按去重键写入通知，任务重试不会重复写入
func (c *Consumer) notify(n *models.Notification) error {
	if c.NotificationRepo == nil {
		logger.Warnw("worker_notify_skip_repo_nil", "event_type", n.EventType, "biz_id", n.BizID)
		return nil
	}
	created, err := c.NotificationRepo.CreateIfAbsent(n)
	if err != nil {
		logger.Warnw("worker_notify_failed", "event_type", n.EventType, "dedup_key", n.DedupKey, "error", err)
		return err
	}
	if !created {
		logger.Debugw("worker_notify_skip_duplicate", "dedup_key", n.DedupKey)
	}
	return nil
}
