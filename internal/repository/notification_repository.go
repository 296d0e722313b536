package repository

import (
	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository 站内通知数据访问接口
type NotificationRepository interface {
	CreateIfAbsent(n *models.Notification) (bool, error)
	ListByUser(userID uint, page, pageSize int) ([]models.Notification, int64, error)
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// CreateIfAbsent 按去重键写入，已存在时返回 false
func (r *GormNotificationRepository) CreateIfAbsent(n *models.Notification) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByUser 用户通知列表
func (r *GormNotificationRepository) ListByUser(userID uint, page, pageSize int) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Notification
	if err := applyPagination(query.Order("id desc"), page, pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
