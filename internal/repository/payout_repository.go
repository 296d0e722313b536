package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 提现数据访问接口
type PayoutRepository interface {
	Create(req *models.PayoutRequest) error
	GetByID(id uint) (*models.PayoutRequest, error)
	Transition(id uint, from []string, to string, fields map[string]interface{}) (bool, error)
	List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error)
	GetAccountForUpdate(guideID uint) (*models.GuidePayoutAccount, error)
	CompareAndSetOutstanding(guideID uint, expected, next models.Money) (bool, error)
	WithTx(tx *gorm.DB) *GormPayoutRepository
}

// GormPayoutRepository GORM 实现
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建提现仓库
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) *GormPayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Create 创建提现申请
func (r *GormPayoutRepository) Create(req *models.PayoutRequest) error {
	return r.db.Create(req).Error
}

// GetByID 根据 ID 获取提现申请
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var req models.PayoutRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Transition 条件状态迁移（当前状态需在 from 中）
func (r *GormPayoutRepository) Transition(id uint, from []string, to string, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	result := r.db.Model(&models.PayoutRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List 提现申请列表
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	query := r.db.Model(&models.PayoutRequest{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.GuideID != 0 {
		query = query.Where("guide_id = ?", filter.GuideID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []models.PayoutRequest
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// GetAccountForUpdate 加锁获取导游提现账户，不存在时先创建
func (r *GormPayoutRepository) GetAccountForUpdate(guideID uint) (*models.GuidePayoutAccount, error) {
	if guideID == 0 {
		return nil, nil
	}
	now := time.Now()
	seed := models.GuidePayoutAccount{GuideID: guideID, CreatedAt: now, UpdatedAt: now}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guide_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var account models.GuidePayoutAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("guide_id = ?", guideID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// CompareAndSetOutstanding 以当前占用额度为条件更新
func (r *GormPayoutRepository) CompareAndSetOutstanding(guideID uint, expected, next models.Money) (bool, error) {
	result := r.db.Model(&models.GuidePayoutAccount{}).
		Where("guide_id = ? AND outstanding_amount = ?", guideID, expected).
		Updates(map[string]interface{}{
			"outstanding_amount": next,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
