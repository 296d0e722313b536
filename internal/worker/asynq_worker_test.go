package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/provider"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupConsumerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}, &models.PaymentTransaction{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	consumer := NewConsumer(&provider.Container{
		NotificationRepo: repository.NewNotificationRepository(db),
		TransactionRepo:  repository.NewPaymentTransactionRepository(db),
	})
	return consumer, db
}

func countNotifications(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	return count
}

func TestBookingPaidTaskWritesReceiptsOnce(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	task, err := queue.NewBookingPaidTask(queue.BookingPaidPayload{
		BookingID:     1,
		BookingNo:     "BK0001",
		TransactionID: 10,
		CustomerID:    100,
		GuideID:       7,
		Gateway:       "momo",
		TxnRef:        "TB1260301080000ABC123",
		Amount:        "1000000",
		PaidAt:        time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	// asynq 至少一次投递，重复执行不得重复写入
	for i := 0; i < 3; i++ {
		if err := consumer.handleBookingPaid(context.Background(), task); err != nil {
			t.Fatalf("handle booking paid failed: %v", err)
		}
	}
	if got := countNotifications(t, db, 100); got != 1 {
		t.Fatalf("expected 1 customer receipt, got %d", got)
	}
	if got := countNotifications(t, db, 7); got != 1 {
		t.Fatalf("expected 1 guide notice, got %d", got)
	}
	var receipt models.Notification
	if err := db.Where("user_id = ?", 100).First(&receipt).Error; err != nil {
		t.Fatalf("load receipt failed: %v", err)
	}
	if !strings.Contains(receipt.Title, "BK0001") || receipt.EventType != "booking_paid" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestBookingRefundedTaskWritesNotification(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	task, err := queue.NewBookingRefundedTask(queue.BookingRefundedPayload{
		BookingID:     1,
		BookingNo:     "BK0001",
		TransactionID: 10,
		RefundID:      3,
		CustomerID:    100,
		Amount:        "1000000",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := consumer.handleBookingRefunded(context.Background(), task); err != nil {
			t.Fatalf("handle booking refunded failed: %v", err)
		}
	}
	if got := countNotifications(t, db, 100); got != 1 {
		t.Fatalf("expected 1 refund notification, got %d", got)
	}
}

func TestPayoutStatusTaskNotifiesTerminalStatesOnly(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	for _, status := range []string{"approved", "paid", "paid"} {
		task, err := queue.NewPayoutStatusChangedTask(queue.PayoutStatusChangedPayload{PayoutID: 5, GuideID: 7, Status: status, Amount: "400000"})
		if err != nil {
			t.Fatalf("build task failed: %v", err)
		}
		if err := consumer.handlePayoutStatusChanged(context.Background(), task); err != nil {
			t.Fatalf("handle payout status failed: %v", err)
		}
	}
	if got := countNotifications(t, db, 7); got != 1 {
		t.Fatalf("expected 1 payout notification, got %d", got)
	}
}

func TestBookingPaidTaskSkipsInvalidPayload(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	task, err := queue.NewBookingPaidTask(queue.BookingPaidPayload{BookingID: 1})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleBookingPaid(context.Background(), task); err != nil {
		t.Fatalf("expected invalid payload skipped, got %v", err)
	}
	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no notifications, got %d", count)
	}
}

func TestReportStaleCheckoutsLeavesTransactionsUntouched(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	now := time.Now().UTC()
	expired := now.Add(-time.Minute)
	live := now.Add(10 * time.Minute)
	for i, expiresAt := range []time.Time{expired, live} {
		bookingID := uint(40 + i)
		txn := &models.PaymentTransaction{
			BookingID:         bookingID,
			CustomerID:        100,
			Gateway:           constants.GatewayMomo,
			TxnRef:            fmt.Sprintf("TB%dSTALE", bookingID),
			InFlightBookingID: &bookingID,
			Amount:            models.NewMoneyFromInt(500000),
			Currency:          constants.CurrencyVND,
			Status:            constants.TransactionStatusInitiated,
			ExpiresAt:         &expiresAt,
		}
		if err := db.Create(txn).Error; err != nil {
			t.Fatalf("create transaction failed: %v", err)
		}
	}

	count, err := consumer.ReportStaleCheckouts(now)
	if err != nil {
		t.Fatalf("report stale checkouts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stale checkout, got %d", count)
	}
	var initiated int64
	db.Model(&models.PaymentTransaction{}).Where("status = ?", constants.TransactionStatusInitiated).Count(&initiated)
	if initiated != 2 {
		t.Fatalf("stale scan must not change status, initiated=%d", initiated)
	}
}
