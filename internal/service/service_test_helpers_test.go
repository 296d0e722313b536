package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/queue"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接使并发用例在 SQLite 上串行提交
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return db
}

// recordingPublisher 记录副作用投递次数
type recordingPublisher struct {
	mu       sync.Mutex
	paid     []queue.BookingPaidPayload
	refunded []queue.BookingRefundedPayload
	payouts  []queue.PayoutStatusChangedPayload
}

func (p *recordingPublisher) EnqueueBookingPaid(_ context.Context, payload queue.BookingPaidPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, payload)
	return nil
}

func (p *recordingPublisher) EnqueueBookingRefunded(_ context.Context, payload queue.BookingRefundedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, payload)
	return nil
}

func (p *recordingPublisher) EnqueuePayoutStatusChanged(_ context.Context, payload queue.PayoutStatusChangedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payouts = append(p.payouts, payload)
	return nil
}

func (p *recordingPublisher) paidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid)
}

var testBookingSeq atomic.Int64

func nextTestBookingNo(prefix string) string {
	return fmt.Sprintf("%s%06d", prefix, testBookingSeq.Add(1))
}

func createTestTour(t *testing.T, db *gorm.DB, id, guideID uint, title string) *models.Tour {
	t.Helper()
	tour := &models.Tour{ID: id, Title: title, GuideID: guideID, Price: models.NewMoneyFromInt(1000000), IsActive: true}
	if err := db.Create(tour).Error; err != nil {
		t.Fatalf("create tour failed: %v", err)
	}
	return tour
}

func createTestBooking(t *testing.T, db *gorm.DB, tour *models.Tour, customerID uint, amount int64) *models.Booking {
	t.Helper()
	tourDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		BookingNo:     nextTestBookingNo(fmt.Sprintf("BK%d-", tour.ID)),
		TourID:        tour.ID,
		CustomerID:    customerID,
		GuideID:       tour.GuideID,
		Status:        "pending",
		PaymentStatus: "unpaid",
		TotalPrice:    models.NewMoneyFromInt(amount),
		Currency:      "VND",
		TourDate:      &tourDate,
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	return booking
}
