package repository

import (
	"errors"

	"github.com/tourbook-next/internal/models"

	"gorm.io/gorm"
)

// TourRepository 线路数据访问接口
type TourRepository interface {
	GetByID(id uint) (*models.Tour, error)
	GetTitles(ids []uint) (map[uint]string, error)
}

// GormTourRepository GORM 实现
type GormTourRepository struct {
	db *gorm.DB
}

// NewTourRepository 创建线路仓库
func NewTourRepository(db *gorm.DB) *GormTourRepository {
	return &GormTourRepository{db: db}
}

// GetByID 根据 ID 获取线路（包含已下架，不包含已删除）
func (r *GormTourRepository) GetByID(id uint) (*models.Tour, error) {
	var tour models.Tour
	if err := r.db.First(&tour, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tour, nil
}

// GetTitles 批量获取线路标题，缺失的 ID 不出现在结果中
func (r *GormTourRepository) GetTitles(ids []uint) (map[uint]string, error) {
	titles := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	var rows []struct {
		ID    uint
		Title string
	}
	if err := r.db.Model(&models.Tour{}).Select("id, title").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}
