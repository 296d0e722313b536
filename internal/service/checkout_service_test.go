package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/payment/momo"
	"github.com/tourbook-next/internal/repository"

	"gorm.io/gorm"
)

var testMomoEnv = config.MomoEnvConfig{
	PartnerCode: "MOMOTEST",
	AccessKey:   "F8BBA842ECF85",
	SecretKey:   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
	Endpoint:    "https://test-payment.momo.vn",
}

var testVnpayEnv = config.VnpayEnvConfig{
	TmnCode:    "TBTEST01",
	HashSecret: "VNPAYSECRETVNPAYSECRETVNPAYSECRE",
	PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
}

type checkoutFixture struct {
	db          *gorm.DB
	configs     *GatewayConfigService
	bookingRepo *repository.GormBookingRepository
	txnRepo     *repository.GormPaymentTransactionRepository
	checkout    *CheckoutService
}

func newCheckoutFixture(t *testing.T, paymentCfg config.PaymentConfig) *checkoutFixture {
	t.Helper()
	db := openServiceTestDB(t)
	configs, err := NewGatewayConfigService(repository.NewPaymentSettingRepository(db), paymentCfg)
	if err != nil {
		t.Fatalf("new gateway config service failed: %v", err)
	}
	bookingRepo := repository.NewBookingRepository(db)
	txnRepo := repository.NewPaymentTransactionRepository(db)
	checkout := NewCheckoutService(bookingRepo, txnRepo, configs, 15)
	checkout.momoCreate = func(_ context.Context, _ *momo.Config, input momo.CreateInput) (*momo.CreateResult, error) {
		return &momo.CreateResult{PayURL: "https://test-payment.momo.vn/pay/" + input.OrderID}, nil
	}
	return &checkoutFixture{db: db, configs: configs, bookingRepo: bookingRepo, txnRepo: txnRepo, checkout: checkout}
}

func countTransactions(t *testing.T, db *gorm.DB, bookingID uint) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.PaymentTransaction{}).Where("booking_id = ?", bookingID).Count(&count).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	return count
}

func TestInitiateCreatesTransactionAndReusesSession(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv, PublicBaseURL: "https://api.example.com"})
	tour := createTestTour(t, f.db, 1, 7, "Ha Long Bay")
	booking := createTestBooking(t, f.db, tour, 100, 1000000)

	first, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if first.Reused || first.RedirectURL == "" || first.TransactionRef == "" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Transaction.Amount.IntString() != "1000000" || first.Transaction.Status != "initiated" {
		t.Fatalf("unexpected transaction: %+v", first.Transaction)
	}

	second, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"})
	if err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}
	if !second.Reused || second.TransactionRef != first.TransactionRef || second.RedirectURL != first.RedirectURL {
		t.Fatalf("expected reused session, got %+v", second)
	}
	if got := countTransactions(t, f.db, booking.ID); got != 1 {
		t.Fatalf("expected 1 transaction, got %d", got)
	}
}

func TestInitiateRejectsOtherGatewayWhileInFlight(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv, Vnpay: testVnpayEnv, PublicBaseURL: "https://api.example.com"})
	tour := createTestTour(t, f.db, 1, 7, "Sapa Trek")
	booking := createTestBooking(t, f.db, tour, 100, 500000)

	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	_, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "vnpay"})
	if !errors.Is(err, ErrCheckoutInFlight) {
		t.Fatalf("expected checkout in flight, got %v", err)
	}
}

func TestInitiateExpiredSessionStaysInFlight(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv, PublicBaseURL: "https://api.example.com"})
	tour := createTestTour(t, f.db, 1, 7, "Mekong Delta")
	booking := createTestBooking(t, f.db, tour, 100, 500000)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.checkout.now = func() time.Time { return start }
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	f.checkout.now = func() time.Time { return start.Add(time.Hour) }
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); !errors.Is(err, ErrCheckoutInFlight) {
		t.Fatalf("expected expired session to block new checkout, got %v", err)
	}
}

func TestInitiateConcurrentCreatesSingleTransaction(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Vnpay: testVnpayEnv, PublicBaseURL: "https://api.example.com"})
	tour := createTestTour(t, f.db, 1, 7, "Hoi An")
	booking := createTestBooking(t, f.db, tour, 100, 750000)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "vnpay", ClientIP: "127.0.0.1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrCheckoutInFlight):
		default:
			t.Fatalf("unexpected initiate error: %v", err)
		}
	}
	if succeeded == 0 {
		t.Fatalf("expected at least one successful initiate")
	}
	if got := countTransactions(t, f.db, booking.ID); got != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", got)
	}
}

func TestInitiateForbiddenForOtherCustomer(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv})
	tour := createTestTour(t, f.db, 1, 7, "Da Lat")
	booking := createTestBooking(t, f.db, tour, 100, 500000)

	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 101, Gateway: "momo"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: 9999, CustomerID: 100, Gateway: "momo"}); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected booking not found, got %v", err)
	}
}

func TestInitiateWithoutConfigCreatesNothing(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{})
	tour := createTestTour(t, f.db, 1, 7, "Hue")
	booking := createTestBooking(t, f.db, tour, 100, 500000)

	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "vnpay"}); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected config not found, got %v", err)
	}
	if got := countTransactions(t, f.db, booking.ID); got != 0 {
		t.Fatalf("expected no transaction, got %d", got)
	}
}

func TestInitiateGatewayFailureReleasesBooking(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv, PublicBaseURL: "https://api.example.com"})
	tour := createTestTour(t, f.db, 1, 7, "Phu Quoc")
	booking := createTestBooking(t, f.db, tour, 100, 500000)

	f.checkout.momoCreate = func(context.Context, *momo.Config, momo.CreateInput) (*momo.CreateResult, error) {
		return nil, momo.ErrRequestFailed
	}
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); !errors.Is(err, ErrGatewayRequestFailed) {
		t.Fatalf("expected gateway request failed, got %v", err)
	}
	inflight, err := f.txnRepo.GetInFlightByBooking(booking.ID)
	if err != nil {
		t.Fatalf("get in flight failed: %v", err)
	}
	if inflight != nil {
		t.Fatalf("expected booking released, got in flight %+v", inflight)
	}

	f.checkout.momoCreate = func(_ context.Context, _ *momo.Config, input momo.CreateInput) (*momo.CreateResult, error) {
		return &momo.CreateResult{PayURL: "https://test-payment.momo.vn/pay/" + input.OrderID}, nil
	}
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); err != nil {
		t.Fatalf("retry initiate failed: %v", err)
	}
	if got := countTransactions(t, f.db, booking.ID); got != 2 {
		t.Fatalf("expected failed and new transaction, got %d", got)
	}
}

func TestInitiateRejectsPaidBooking(t *testing.T) {
	f := newCheckoutFixture(t, config.PaymentConfig{Momo: testMomoEnv})
	tour := createTestTour(t, f.db, 1, 7, "Nha Trang")
	booking := createTestBooking(t, f.db, tour, 100, 500000)
	if _, err := f.bookingRepo.MarkPaid(booking.ID, time.Now()); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if _, err := f.checkout.Initiate(context.Background(), CheckoutInput{BookingID: booking.ID, CustomerID: 100, Gateway: "momo"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}
