package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type payoutFixture struct {
	db      *gorm.DB
	events  *recordingPublisher
	payouts *PayoutService
}

func newPayoutFixture(t *testing.T) *payoutFixture {
	t.Helper()
	db := openServiceTestDB(t)
	events := &recordingPublisher{}
	return &payoutFixture{
		db:      db,
		events:  events,
		payouts: NewPayoutService(repository.NewPayoutRepository(db), repository.NewRevenueRepository(db), events),
	}
}

// seedGuideEarnings 为导游写入一笔已支付预订
func seedGuideEarnings(t *testing.T, db *gorm.DB, tourID, guideID uint, amount int64) {
	t.Helper()
	tour := createTestTour(t, db, tourID, guideID, "Guide tour")
	booking := createTestBooking(t, db, tour, 100, amount)
	if _, err := repository.NewBookingRepository(db).MarkPaid(booking.ID, time.Now()); err != nil {
		t.Fatalf("mark booking paid failed: %v", err)
	}
}

func TestPayoutRequestRejectsInsufficientBalance(t *testing.T) {
	f := newPayoutFixture(t)
	seedGuideEarnings(t, f.db, 1, 7, 500000)

	balance, err := f.payouts.Balance(7)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance.Available.IntString() != "500000" {
		t.Fatalf("expected available 500000, got %s", balance.Available.String())
	}
	if _, err := f.payouts.RequestPayout(7, decimal.NewFromInt(600000), ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	var count int64
	if err := f.db.Model(&models.PayoutRequest{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payout request created, got %d", count)
	}
	if _, err := f.payouts.RequestPayout(7, decimal.Zero, ""); !errors.Is(err, ErrPayoutAmountInvalid) {
		t.Fatalf("expected amount invalid, got %v", err)
	}
}

func TestPayoutConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := newPayoutFixture(t)
	seedGuideEarnings(t, f.db, 1, 7, 1000000)

	amounts := []int64{700000, 600000}
	var wg sync.WaitGroup
	errs := make([]error, len(amounts))
	for i, amount := range amounts {
		wg.Add(1)
		go func(idx int, amount int64) {
			defer wg.Done()
			_, errs[idx] = f.payouts.RequestPayout(7, decimal.NewFromInt(amount), "")
		}(i, amount)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected payout error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one payout accepted, got %d", succeeded)
	}
	balance, err := f.payouts.Balance(7)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance.Available.IsNegative() {
		t.Fatalf("balance overdrawn: %s", balance.Available.String())
	}
}

func TestPayoutLifecycle(t *testing.T) {
	f := newPayoutFixture(t)
	seedGuideEarnings(t, f.db, 1, 7, 1000000)
	ctx := context.Background()

	req, err := f.payouts.RequestPayout(7, decimal.NewFromInt(400000), "monthly")
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}
	if _, err := f.payouts.MarkPaid(ctx, req.ID, 1, "BANK-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state paying pending payout, got %v", err)
	}
	approved, err := f.payouts.Approve(ctx, req.ID, 1)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != "approved" || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approved payout: %+v", approved)
	}
	paid, err := f.payouts.MarkPaid(ctx, req.ID, 1, "BANK-1")
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != "paid" || paid.PaidReference != "BANK-1" {
		t.Fatalf("unexpected paid payout: %+v", paid)
	}
	if _, err := f.payouts.MarkPaid(ctx, req.ID, 1, "BANK-1"); err != nil {
		t.Fatalf("repeat mark paid should be idempotent: %v", err)
	}
	if len(f.events.payouts) != 1 || f.events.payouts[0].Status != "paid" {
		t.Fatalf("expected one paid payout event, got %+v", f.events.payouts)
	}
	if _, err := f.payouts.Reject(ctx, req.ID, 1, "late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state rejecting paid payout, got %v", err)
	}
	balance, err := f.payouts.Balance(7)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance.Outstanding.IntString() != "400000" || balance.Available.IntString() != "600000" {
		t.Fatalf("unexpected balance after payout: %+v", balance)
	}
}

func TestPayoutRejectReleasesBalance(t *testing.T) {
	f := newPayoutFixture(t)
	seedGuideEarnings(t, f.db, 1, 7, 500000)
	ctx := context.Background()

	req, err := f.payouts.RequestPayout(7, decimal.NewFromInt(500000), "")
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}
	if _, err := f.payouts.Reject(ctx, req.ID, 1, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected reason required, got %v", err)
	}
	rejected, err := f.payouts.Reject(ctx, req.ID, 1, "bank details missing")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if _, err := f.payouts.MarkPaid(ctx, req.ID, 1, "BANK-2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state paying rejected payout, got %v", err)
	}
	balance, err := f.payouts.Balance(7)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance.Available.IntString() != "500000" {
		t.Fatalf("expected balance released, got %s", balance.Available.String())
	}
	if _, err := f.payouts.RequestPayout(7, decimal.NewFromInt(500000), ""); err != nil {
		t.Fatalf("request after release failed: %v", err)
	}
}
