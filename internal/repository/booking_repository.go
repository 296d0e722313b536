package repository

import (
	"errors"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingRepository 预订数据访问接口
type BookingRepository interface {
	Create(booking *models.Booking) error
	GetByID(id uint) (*models.Booking, error)
	GetByIDForUpdate(id uint) (*models.Booking, error)
	MarkPaid(id uint, paidAt time.Time) (bool, error)
	MarkRefunded(id uint, refundedAt time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormBookingRepository
}

// GormBookingRepository GORM 实现
type GormBookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建预订仓库
func NewBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBookingRepository) WithTx(tx *gorm.DB) *GormBookingRepository {
	if tx == nil {
		return r
	}
	return &GormBookingRepository{db: tx}
}

// Create 创建预订
func (r *GormBookingRepository) Create(booking *models.Booking) error {
	return r.db.Create(booking).Error
}

// GetByID 根据 ID 获取预订
func (r *GormBookingRepository) GetByID(id uint) (*models.Booking, error) {
	if id == 0 {
		return nil, nil
	}
	var booking models.Booking
	if err := r.db.First(&booking, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// GetByIDForUpdate 加锁获取预订（SQLite 下忽略行锁，依赖单连接串行）
func (r *GormBookingRepository) GetByIDForUpdate(id uint) (*models.Booking, error) {
	if id == 0 {
		return nil, nil
	}
	var booking models.Booking
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// MarkPaid 条件更新 unpaid -> paid，同时确认预订；已取消或已完成的预订不可支付。返回是否由本次调用完成迁移
func (r *GormBookingRepository) MarkPaid(id uint, paidAt time.Time) (bool, error) {
	result := r.db.Model(&models.Booking{}).
		Where("id = ? AND payment_status = ? AND status IN ?", id, constants.BookingPaymentUnpaid,
			[]string{constants.BookingStatusPending, constants.BookingStatusConfirmed}).
		Updates(map[string]interface{}{
			"payment_status": constants.BookingPaymentPaid,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				constants.BookingStatusPending, constants.BookingStatusConfirmed),
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkRefunded 条件更新 paid -> refunded，已确认的预订随之取消
func (r *GormBookingRepository) MarkRefunded(id uint, refundedAt time.Time) (bool, error) {
	result := r.db.Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, constants.BookingPaymentPaid).
		Updates(map[string]interface{}{
			"payment_status": constants.BookingPaymentRefunded,
			"status": gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END",
				[]string{constants.BookingStatusPending, constants.BookingStatusConfirmed}, constants.BookingStatusCanceled),
			"refunded_at": refundedAt,
			"updated_at":  refundedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
