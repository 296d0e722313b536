package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

// PaidUpdate 支付成功时写入的网关字段
type PaidUpdate struct {
	RawStatus     string
	ProviderTxnNo string
	PaidAt        time.Time
}

// PaymentTransactionRepository 支付交易数据访问接口
type PaymentTransactionRepository interface {
	Create(txn *models.PaymentTransaction) error
	GetByID(id uint) (*models.PaymentTransaction, error)
	GetByGatewayRef(gateway, txnRef string) (*models.PaymentTransaction, error)
	GetInFlightByBooking(bookingID uint) (*models.PaymentTransaction, error)
	GetLatestByBooking(bookingID uint) (*models.PaymentTransaction, error)
	SavePayURL(id uint, payURL string, payload models.JSON) error
	MarkPaid(id uint, update PaidUpdate) (bool, error)
	MarkFailed(id uint, rawStatus, reason string, at time.Time) (bool, error)
	MarkRefunded(id uint, at time.Time) (bool, error)
	FlagReview(id uint) error
	ListAdmin(filter TransactionListFilter) ([]models.PaymentTransaction, int64, error)
	ListStaleInitiated(before time.Time, limit int) ([]models.PaymentTransaction, error)
	WithTx(tx *gorm.DB) *GormPaymentTransactionRepository
}

// GormPaymentTransactionRepository GORM 实现
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

// NewPaymentTransactionRepository 创建支付交易仓库
func NewPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentTransactionRepository) WithTx(tx *gorm.DB) *GormPaymentTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentTransactionRepository{db: tx}
}

// Create 创建交易
func (r *GormPaymentTransactionRepository) Create(txn *models.PaymentTransaction) error {
	return r.db.Create(txn).Error
}

// GetByID 根据 ID 获取交易
func (r *GormPaymentTransactionRepository) GetByID(id uint) (*models.PaymentTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var txn models.PaymentTransaction
	if err := r.db.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByGatewayRef 根据网关+商户交易号获取交易
func (r *GormPaymentTransactionRepository) GetByGatewayRef(gateway, txnRef string) (*models.PaymentTransaction, error) {
	gateway = strings.TrimSpace(gateway)
	txnRef = strings.TrimSpace(txnRef)
	if gateway == "" || txnRef == "" {
		return nil, nil
	}
	var txn models.PaymentTransaction
	result := r.db.Where("gateway = ? AND txn_ref = ?", gateway, txnRef).Limit(1).Find(&txn)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &txn, nil
}

// GetInFlightByBooking 获取预订当前进行中的交易
func (r *GormPaymentTransactionRepository) GetInFlightByBooking(bookingID uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	result := r.db.Where("booking_id = ? AND status = ?", bookingID, constants.TransactionStatusInitiated).
		Order("id desc").Limit(1).Find(&txn)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &txn, nil
}

// GetLatestByBooking 获取预订最新一笔交易
func (r *GormPaymentTransactionRepository) GetLatestByBooking(bookingID uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	result := r.db.Where("booking_id = ?", bookingID).Order("id desc").Limit(1).Find(&txn)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &txn, nil
}

// SavePayURL 写入下单结果，仅限 initiated 交易
func (r *GormPaymentTransactionRepository) SavePayURL(id uint, payURL string, payload models.JSON) error {
	return r.db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, constants.TransactionStatusInitiated).
		Updates(map[string]interface{}{
			"pay_url":    payURL,
			"payload":    payload,
			"updated_at": time.Now(),
		}).Error
}

// MarkPaid 条件更新 initiated -> paid，释放进行中占位
func (r *GormPaymentTransactionRepository) MarkPaid(id uint, update PaidUpdate) (bool, error) {
	result := r.db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, constants.TransactionStatusInitiated).
		Updates(map[string]interface{}{
			"status":               constants.TransactionStatusPaid,
			"in_flight_booking_id": nil,
			"raw_status":           update.RawStatus,
			"provider_txn_no":      update.ProviderTxnNo,
			"paid_at":              update.PaidAt,
			"notified_at":          update.PaidAt,
			"updated_at":           update.PaidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed 条件更新 initiated -> failed，释放进行中占位
func (r *GormPaymentTransactionRepository) MarkFailed(id uint, rawStatus, reason string, at time.Time) (bool, error) {
	result := r.db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, constants.TransactionStatusInitiated).
		Updates(map[string]interface{}{
			"status":               constants.TransactionStatusFailed,
			"in_flight_booking_id": nil,
			"raw_status":           rawStatus,
			"failure_reason":       reason,
			"failed_at":            at,
			"notified_at":          at,
			"updated_at":           at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkRefunded 条件更新 paid -> refunded
func (r *GormPaymentTransactionRepository) MarkRefunded(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, constants.TransactionStatusPaid).
		Updates(map[string]interface{}{
			"status":      constants.TransactionStatusRefunded,
			"refunded_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FlagReview 标记人工复核，不改变状态
func (r *GormPaymentTransactionRepository) FlagReview(id uint) error {
	return r.db.Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Update("review_required", true).Error
}

// ListAdmin 管理端交易列表
func (r *GormPaymentTransactionRepository) ListAdmin(filter TransactionListFilter) ([]models.PaymentTransaction, int64, error) {
	query := r.db.Model(&models.PaymentTransaction{})
	if filter.BookingID != 0 {
		query = query.Where("booking_id = ?", filter.BookingID)
	}
	if gateway := strings.TrimSpace(filter.Gateway); gateway != "" {
		query = query.Where("gateway = ?", gateway)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if ref := strings.TrimSpace(filter.TxnRef); ref != "" {
		query = query.Where("txn_ref = ?", ref)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, count := buildKeywordCondition(r.db, []string{"txn_ref", "provider_txn_no"})
		query = query.Where(condition, repeatLikeArgs(containsPattern(keyword), count)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txns []models.PaymentTransaction
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListStaleInitiated 已过期但仍占用预订的 initiated 交易，按过期时间升序
func (r *GormPaymentTransactionRepository) ListStaleInitiated(before time.Time, limit int) ([]models.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []models.PaymentTransaction
	err := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", constants.TransactionStatusInitiated, before).
		Order("expires_at asc").Limit(limit).Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
