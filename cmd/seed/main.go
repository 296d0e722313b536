package main

import (
	"fmt"
	"time"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type seedBooking struct {
	no           string
	tourTitle    string
	customerID   uint
	participants int
	paid         bool
	gateway      string
	paidDaysAgo  int
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, cfg.Server.Mode, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 线路
	tours := []models.Tour{
		{Title: "Ha Long Bay Overnight Cruise", GuideID: 7, Price: models.NewMoneyFromDecimal(decimal.NewFromInt(2450000)), IsActive: true},
		{Title: "Hoi An Lantern Walk", GuideID: 7, Price: models.NewMoneyFromDecimal(decimal.NewFromInt(650000)), IsActive: true},
		{Title: "Sapa Rice Terrace Trek", GuideID: 8, Price: models.NewMoneyFromDecimal(decimal.NewFromInt(1800000)), IsActive: true},
		{Title: "Mekong Delta Day Trip", GuideID: 9, Price: models.NewMoneyFromDecimal(decimal.NewFromInt(900000)), IsActive: false},
	}
	tourIDs := map[string]*models.Tour{}
	for i := range tours {
		tour := tours[i]
		var existing models.Tour
		if err := models.DB.Where("title = ?", tour.Title).First(&existing).Error; err != nil {
			if err := models.DB.Create(&tour).Error; err != nil {
				stdLog.Printf("Failed to create tour %s: %v", tour.Title, err)
				continue
			}
			stdLog.Printf("Created tour: %s", tour.Title)
			existing = tour
		} else {
			stdLog.Printf("Tour already exists: %s", tour.Title)
		}
		tourIDs[existing.Title] = &existing
	}

	// 预订与已支付交易（收入报表的演示数据）
	bookings := []seedBooking{
		{no: "BK-SEED-0001", tourTitle: "Ha Long Bay Overnight Cruise", customerID: 100, participants: 2, paid: true, gateway: constants.GatewayMomo, paidDaysAgo: 12},
		{no: "BK-SEED-0002", tourTitle: "Ha Long Bay Overnight Cruise", customerID: 101, participants: 1, paid: true, gateway: constants.GatewayVnpay, paidDaysAgo: 3},
		{no: "BK-SEED-0003", tourTitle: "Hoi An Lantern Walk", customerID: 102, participants: 4, paid: true, gateway: constants.GatewayVnpay, paidDaysAgo: 40},
		{no: "BK-SEED-0004", tourTitle: "Sapa Rice Terrace Trek", customerID: 100, participants: 2},
		{no: "BK-SEED-0005", tourTitle: "Hoi An Lantern Walk", customerID: 103, participants: 1},
	}
	now := time.Now()
	for _, item := range bookings {
		tour, ok := tourIDs[item.tourTitle]
		if !ok {
			continue
		}
		var count int64
		models.DB.Model(&models.Booking{}).Where("booking_no = ?", item.no).Count(&count)
		if count > 0 {
			stdLog.Printf("Booking already exists: %s", item.no)
			continue
		}

		total := models.NewMoneyFromDecimal(tour.Price.Decimal.Mul(decimal.NewFromInt(int64(item.participants))))
		tourDate := now.AddDate(0, 0, 30).Truncate(24 * time.Hour)
		participants := make([]models.Participant, 0, item.participants)
		for i := 0; i < item.participants; i++ {
			participants = append(participants, models.Participant{Name: fmt.Sprintf("Traveller %d", i+1)})
		}
		booking := models.Booking{
			BookingNo:     item.no,
			TourID:        tour.ID,
			CustomerID:    item.customerID,
			GuideID:       tour.GuideID,
			Status:        constants.BookingStatusPending,
			PaymentStatus: constants.BookingPaymentUnpaid,
			TotalPrice:    total,
			Currency:      "VND",
			Participants:  datatypes.JSONSlice[models.Participant](participants),
			TourDate:      &tourDate,
		}
		if item.paid {
			paidAt := now.AddDate(0, 0, -item.paidDaysAgo)
			booking.Status = constants.BookingStatusConfirmed
			booking.PaymentStatus = constants.BookingPaymentPaid
			booking.PaidAt = &paidAt
		}
		if err := models.DB.Create(&booking).Error; err != nil {
			stdLog.Printf("Failed to create booking %s: %v", item.no, err)
			continue
		}
		stdLog.Printf("Created booking: %s", item.no)

		if !item.paid {
			continue
		}
		txn := models.PaymentTransaction{
			BookingID:     booking.ID,
			CustomerID:    booking.CustomerID,
			Gateway:       item.gateway,
			TxnRef:        item.no + "-SEED",
			Amount:        total,
			Currency:      "VND",
			Status:        constants.TransactionStatusPaid,
			RawStatus:     "00",
			ProviderTxnNo: fmt.Sprintf("SEED%08d", booking.ID),
			PaidAt:        booking.PaidAt,
		}
		if item.gateway == constants.GatewayMomo {
			txn.RawStatus = "0"
		}
		if err := models.DB.Create(&txn).Error; err != nil {
			stdLog.Printf("Failed to create transaction for %s: %v", item.no, err)
		}
	}

	stdLog.Printf("Seed completed")
}
