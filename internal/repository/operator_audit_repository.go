package repository

import (
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

// OperatorAuditRepository 运营审计日志数据访问接口
type OperatorAuditRepository interface {
	Create(log *models.OperatorAuditLog) error
	List(filter OperatorAuditListFilter) ([]models.OperatorAuditLog, int64, error)
}

// GormOperatorAuditRepository GORM 实现
type GormOperatorAuditRepository struct {
	db *gorm.DB
}

// NewOperatorAuditRepository 创建运营审计日志仓库
func NewOperatorAuditRepository(db *gorm.DB) *GormOperatorAuditRepository {
	return &GormOperatorAuditRepository{db: db}
}

// Create 追加一条审计日志
func (r *GormOperatorAuditRepository) Create(log *models.OperatorAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// List 按操作人、动作、目标与时间范围检索，新记录在前
func (r *GormOperatorAuditRepository) List(filter OperatorAuditListFilter) ([]models.OperatorAuditLog, int64, error) {
	query := r.db.Model(&models.OperatorAuditLog{})
	if filter.OperatorAdminID != 0 {
		query = query.Where("operator_admin_id = ?", filter.OperatorAdminID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != 0 {
		query = query.Where("target_id = ?", filter.TargetID)
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
	logs := make([]models.OperatorAuditLog, 0)
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
