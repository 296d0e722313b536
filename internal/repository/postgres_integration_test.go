//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.PaymentTransaction{},
		&models.Booking{},
		&models.Tour{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(&models.Tour{}, &models.Booking{}, &models.PaymentTransaction{}); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresInFlightGuardAndBookingCAS(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	booking := &models.Booking{
		BookingNo:     "BK-PG-0001",
		TourID:        1,
		CustomerID:    7,
		GuideID:       3,
		Status:        constants.BookingStatusPending,
		PaymentStatus: constants.BookingPaymentUnpaid,
		TotalPrice:    models.NewMoneyFromInt(1500000),
		Currency:      constants.CurrencyVND,
	}
	bookings := NewBookingRepository(db)
	if err := bookings.Create(booking); err != nil {
		t.Fatalf("create booking failed: %v", err)
	}

	txns := NewPaymentTransactionRepository(db)
	first := newInitiatedTransaction(booking.ID, "TBPG1A")
	if err := txns.Create(first); err != nil {
		t.Fatalf("create first transaction failed: %v", err)
	}
	if err := txns.Create(newInitiatedTransaction(booking.ID, "TBPG1B")); err == nil {
		t.Fatalf("expected unique violation on in_flight_booking_id")
	}

	now := time.Now().UTC()
	won, err := txns.MarkPaid(first.ID, PaidUpdate{RawStatus: "00", ProviderTxnNo: "PG1", PaidAt: now})
	if err != nil || !won {
		t.Fatalf("mark transaction paid failed: won=%v err=%v", won, err)
	}
	won, err = bookings.MarkPaid(booking.ID, now)
	if err != nil || !won {
		t.Fatalf("mark booking paid failed: won=%v err=%v", won, err)
	}
	won, err = bookings.MarkPaid(booking.ID, now)
	if err != nil {
		t.Fatalf("second booking mark paid failed: %v", err)
	}
	if won {
		t.Fatalf("second booking mark paid must not win")
	}

	reloaded, err := bookings.GetByID(booking.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload booking failed: %v", err)
	}
	if reloaded.Status != constants.BookingStatusConfirmed || reloaded.PaymentStatus != constants.BookingPaymentPaid {
		t.Fatalf("unexpected booking state: %s/%s", reloaded.Status, reloaded.PaymentStatus)
	}
}

func TestPostgresTransactionKeywordSearchIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewPaymentTransactionRepository(db)

	txn := newInitiatedTransaction(31, "TBPG31A")
	if err := repo.Create(txn); err != nil {
		t.Fatalf("create transaction failed: %v", err)
	}
	if _, err := repo.MarkPaid(txn.ID, PaidUpdate{RawStatus: "0", ProviderTxnNo: "MoMo-2901", PaidAt: time.Now().UTC()}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	for _, keyword := range []string{"tbpg31", "momo-29"} {
		rows, total, err := repo.ListAdmin(TransactionListFilter{Keyword: keyword, Page: 1, PageSize: 20})
		if err != nil {
			t.Fatalf("keyword %q search failed: %v", keyword, err)
		}
		if total != 1 || len(rows) != 1 || rows[0].ID != txn.ID {
			t.Fatalf("keyword %q want transaction %d, got total=%d", keyword, txn.ID, total)
		}
	}
}
