package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentSettingRepository 网关配置数据访问接口
type PaymentSettingRepository interface {
	GetByGateway(gateway string) (*models.PaymentSetting, error)
	List() ([]models.PaymentSetting, error)
	Upsert(setting *models.PaymentSetting) error
}

// GormPaymentSettingRepository GORM 实现
type GormPaymentSettingRepository struct {
	db *gorm.DB
}

// NewPaymentSettingRepository 创建网关配置仓库
func NewPaymentSettingRepository(db *gorm.DB) *GormPaymentSettingRepository {
	return &GormPaymentSettingRepository{db: db}
}

// GetByGateway 获取指定网关配置
func (r *GormPaymentSettingRepository) GetByGateway(gateway string) (*models.PaymentSetting, error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" {
		return nil, nil
	}
	var setting models.PaymentSetting
	if err := r.db.Where("gateway = ?", gateway).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// List 获取全部网关配置
func (r *GormPaymentSettingRepository) List() ([]models.PaymentSetting, error) {
	var settings []models.PaymentSetting
	if err := r.db.Order("gateway asc").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// Upsert 按网关写入配置
func (r *GormPaymentSettingRepository) Upsert(setting *models.PaymentSetting) error {
	if setting == nil {
		return nil
	}
	now := time.Now()
	if setting.CreatedAt.IsZero() {
		setting.CreatedAt = now
	}
	setting.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "config", "updated_by", "updated_at"}),
	}).Create(setting).Error
}
