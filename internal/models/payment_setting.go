package models

import (
	"time"
)

// PaymentSetting 支付网关配置（每个网关一条）
type PaymentSetting struct {
	ID        uint      `gorm:"primarykey" json:"id"`                        // 主键
	Gateway   string    `gorm:"uniqueIndex;size:20;not null" json:"gateway"` // 网关（momo/vnpay）
	IsActive  bool      `gorm:"not null;default:false" json:"is_active"`     // 是否启用
	Config    JSON      `gorm:"type:json" json:"config"`                     // 网关配置（密钥字段加密存储）
	UpdatedBy uint      `json:"updated_by"`                                  // 最后修改人
	CreatedAt time.Time `json:"created_at"`                                  // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                  // 更新时间
}

// TableName 指定表名
func (PaymentSetting) TableName() string {
	return "payment_settings"
}
