package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

// PaymentAuditRepository 网关通知流水与对账异常
type PaymentAuditRepository interface {
	CreateNotification(n *models.PaymentNotification) error
	CountNotifications(gateway, txnRef string) (int64, error)
	CreateAnomaly(a *models.PaymentAnomaly) error
	GetAnomaly(id uint) (*models.PaymentAnomaly, error)
	ListAnomalies(filter AnomalyListFilter) ([]models.PaymentAnomaly, int64, error)
	ResolveAnomaly(id uint, resolvedBy uint, note string, at time.Time) (bool, error)
}

// GormPaymentAuditRepository GORM 实现
type GormPaymentAuditRepository struct {
	db *gorm.DB
}

// NewPaymentAuditRepository 创建审计仓库
func NewPaymentAuditRepository(db *gorm.DB) *GormPaymentAuditRepository {
	return &GormPaymentAuditRepository{db: db}
}

// CreateNotification 记录一条网关通知
func (r *GormPaymentAuditRepository) CreateNotification(n *models.PaymentNotification) error {
	return r.db.Create(n).Error
}

// CountNotifications 统计交易收到的通知次数
func (r *GormPaymentAuditRepository) CountNotifications(gateway, txnRef string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentNotification{}).
		Where("gateway = ? AND txn_ref = ?", gateway, txnRef).
		Count(&count).Error
	return count, err
}

// CreateAnomaly 记录对账异常
func (r *GormPaymentAuditRepository) CreateAnomaly(a *models.PaymentAnomaly) error {
	return r.db.Create(a).Error
}

// GetAnomaly 获取对账异常
func (r *GormPaymentAuditRepository) GetAnomaly(id uint) (*models.PaymentAnomaly, error) {
	var anomaly models.PaymentAnomaly
	if err := r.db.First(&anomaly, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &anomaly, nil
}

// ListAnomalies 对账异常列表
func (r *GormPaymentAuditRepository) ListAnomalies(filter AnomalyListFilter) ([]models.PaymentAnomaly, int64, error) {
	query := r.db.Model(&models.PaymentAnomaly{})
	if gateway := strings.TrimSpace(filter.Gateway); gateway != "" {
		query = query.Where("gateway = ?", gateway)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var anomalies []models.PaymentAnomaly
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&anomalies).Error; err != nil {
		return nil, 0, err
	}
	return anomalies, total, nil
}

// ResolveAnomaly 标记异常已处理（仅未处理的记录）
func (r *GormPaymentAuditRepository) ResolveAnomaly(id uint, resolvedBy uint, note string, at time.Time) (bool, error) {
	result := r.db.Model(&models.PaymentAnomaly{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":      true,
			"resolved_by":   resolvedBy,
			"resolved_note": note,
			"resolved_at":   at,
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
