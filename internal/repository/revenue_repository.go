package repository

import (
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

const revenueScanBatchSize = 500

// RevenueRepository 营收只读数据访问接口
type RevenueRepository interface {
	ListPaidRecords(filter RevenueFilter) ([]RevenueRecord, error)
	WithTx(tx *gorm.DB) *GormRevenueRepository
}

// GormRevenueRepository GORM 实现
type GormRevenueRepository struct {
	db *gorm.DB
}

// NewRevenueRepository 创建营收仓库
func NewRevenueRepository(db *gorm.DB) *GormRevenueRepository {
	return &GormRevenueRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRevenueRepository) WithTx(tx *gorm.DB) *GormRevenueRepository {
	if tx == nil {
		return r
	}
	return &GormRevenueRepository{db: tx}
}

// ListPaidRecords 分批扫描预订，归一化后返回落在日期区间内的已支付记录
func (r *GormRevenueRepository) ListPaidRecords(filter RevenueFilter) ([]RevenueRecord, error) {
	// 规范状态为 paid，或规范状态缺失（历史导入）时交给归一化判断
	query := r.db.Model(&models.Booking{}).
		Select("id, tour_id, guide_id, payment_status, total_price, tour_date, legacy_attrs, created_at").
		Where("(payment_status = ? OR payment_status = '' OR payment_status IS NULL)", constants.BookingPaymentPaid)
	if filter.TourID != 0 {
		query = query.Where("tour_id = ?", filter.TourID)
	}
	if filter.GuideID != 0 {
		query = query.Where("guide_id = ?", filter.GuideID)
	}
	// 粗过滤留出时区余量，精确过滤在归一化之后
	if filter.From != nil {
		query = query.Where("(tour_date IS NULL OR tour_date >= ?)", filter.From.Add(-24*time.Hour))
	}
	if filter.To != nil {
		query = query.Where("(tour_date IS NULL OR tour_date < ?)", filter.To.Add(48*time.Hour))
	}

	records := make([]RevenueRecord, 0)
	var batch []models.Booking
	result := query.FindInBatches(&batch, revenueScanBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			record := NormalizeBooking(&batch[i])
			if !record.Paid || !withinDays(record.TourDate, filter.From, filter.To) {
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func withinDays(day time.Time, from, to *time.Time) bool {
	if from != nil && day.Before(truncateDay(*from)) {
		return false
	}
	if to != nil && day.After(truncateDay(*to)) {
		return false
	}
	return true
}
