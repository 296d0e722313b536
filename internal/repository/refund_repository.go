package repository

import (
	"errors"
	"strings"

	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

// RefundRepository 退款申请数据访问接口
type RefundRepository interface {
	Create(req *models.RefundRequest) error
	GetByID(id uint) (*models.RefundRequest, error)
	GetPendingByTransaction(transactionID uint) (*models.RefundRequest, error)
	Transition(id uint, from, to string, fields map[string]interface{}) (bool, error)
	List(filter RefundListFilter) ([]models.RefundRequest, int64, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款申请
func (r *GormRefundRepository) Create(req *models.RefundRequest) error {
	return r.db.Create(req).Error
}

// GetByID 根据 ID 获取退款申请
func (r *GormRefundRepository) GetByID(id uint) (*models.RefundRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var req models.RefundRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// GetPendingByTransaction 获取交易的待处理退款申请
func (r *GormRefundRepository) GetPendingByTransaction(transactionID uint) (*models.RefundRequest, error) {
	var req models.RefundRequest
	result := r.db.Where("transaction_id = ? AND status = ?", transactionID, constants.RefundStatusPending).
		Limit(1).Find(&req)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &req, nil
}

// Transition 条件状态迁移；离开 pending 时释放占位
func (r *GormRefundRepository) Transition(id uint, from, to string, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	if from == constants.RefundStatusPending && to != constants.RefundStatusPending {
		updates["pending_transaction_id"] = nil
	}
	result := r.db.Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List 退款申请列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.RefundRequest, int64, error) {
	query := r.db.Model(&models.RefundRequest{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.TransactionID != 0 {
		query = query.Where("transaction_id = ?", filter.TransactionID)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []models.RefundRequest
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
