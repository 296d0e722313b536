package models

import (
	"time"

	"gorm.io/gorm"
)

// Tour 旅游线路（目录由内容服务维护，这里只保留结算需要的字段）
type Tour struct {
	ID        uint           `gorm:"primarykey" json:"id"`                               // 主键
	Title     string         `gorm:"size:255;not null" json:"title"`                     // 线路标题
	GuideID   uint           `gorm:"index" json:"guide_id"`                              // 默认导游
	Price     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 单人价格
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`             // 是否上架
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                            // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间
}

// TableName 指定表名
func (Tour) TableName() string {
	return "tours"
}
