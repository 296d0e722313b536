package repository

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"github.com/shopspring/decimal"
)

// RevenueRecord 营收计算使用的规范化预订记录
type RevenueRecord struct {
	BookingID uint
	TourID    uint
	GuideID   uint
	Amount    decimal.Decimal
	TourDate  time.Time // 自然日零点（UTC 表示）
	Paid      bool
}

// 历史字段名按优先级排列，越具体越靠前
var (
	legacyPaymentStatusKeys = []string{"paymentStatus", "payment_status", "status"}
	legacyPaidFlagKeys      = []string{"isPaid", "is_paid", "paid"}
	legacyAmountKeys        = []string{"totalPrice", "total_price", "totalAmount", "total_amount", "amount", "price"}
	legacyTourDateKeys      = []string{"tourDate", "tour_date", "startDate", "start_date", "date"}
	legacyPaidStatusValues  = map[string]bool{"paid": true, "success": true, "succeeded": true, "completed": true}
	legacyDateLayouts       = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02", "02/01/2006"}
)

// NormalizeBooking 把预订（含历史字段）转换为规范化记录
func NormalizeBooking(booking *models.Booking) RevenueRecord {
	record := RevenueRecord{
		BookingID: booking.ID,
		TourID:    booking.TourID,
		GuideID:   booking.GuideID,
	}
	attrs := booking.LegacyAttrs

	// 规范字段非空时具有最终解释权
	switch strings.TrimSpace(booking.PaymentStatus) {
	case "":
		record.Paid = legacyPaid(attrs)
	case constants.BookingPaymentPaid:
		record.Paid = true
	}

	if booking.TotalPrice.IsPositive() {
		record.Amount = booking.TotalPrice.Decimal
	} else if amount, ok := legacyAmount(attrs); ok {
		record.Amount = amount
	}

	switch {
	case booking.TourDate != nil && !booking.TourDate.IsZero():
		record.TourDate = truncateDay(*booking.TourDate)
	default:
		if date, ok := legacyDate(attrs); ok {
			record.TourDate = truncateDay(date)
		} else {
			record.TourDate = truncateDay(booking.CreatedAt)
		}
	}
	return record
}

func legacyPaid(attrs models.JSON) bool {
	for _, key := range legacyPaymentStatusKeys {
		raw, ok := attrs[key]
		if !ok || raw == nil {
			continue
		}
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) != "" {
			return legacyPaidStatusValues[strings.ToLower(strings.TrimSpace(s))]
		}
	}
	for _, key := range legacyPaidFlagKeys {
		raw, ok := attrs[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case bool:
			return v
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			return err == nil && parsed
		case float64:
			return v == 1
		}
	}
	return false
}

func legacyAmount(attrs models.JSON) (decimal.Decimal, bool) {
	for _, key := range legacyAmountKeys {
		raw, ok := attrs[key]
		if !ok || raw == nil {
			continue
		}
		if amount, ok := toDecimal(raw); ok {
			return amount, true
		}
	}
	return decimal.Zero, false
}

func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		return d, err == nil
	case map[string]interface{}:
		// mongo 导出格式 {"$numberDecimal": "..."}
		if inner, ok := v["$numberDecimal"]; ok {
			return toDecimal(inner)
		}
	}
	return decimal.Zero, false
}

func legacyDate(attrs models.JSON) (time.Time, bool) {
	for _, key := range legacyTourDateKeys {
		raw, ok := attrs[key]
		if !ok || raw == nil {
			continue
		}
		if t, ok := toTime(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func toTime(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range legacyDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case float64:
		// 毫秒时间戳
		return time.UnixMilli(int64(v)).UTC(), true
	case map[string]interface{}:
		if inner, ok := v["$date"]; ok {
			return toTime(inner)
		}
	}
	return time.Time{}, false
}

// truncateDay 取时间在自身时区下的日历日
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
