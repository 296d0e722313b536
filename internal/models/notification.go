package models

import (
	"time"
)

// Notification 站内通知（收据、退款、提现结果）
type Notification struct {
	ID        uint       `gorm:"primarykey" json:"id"`                     // 主键
	UserID    uint       `gorm:"index;not null" json:"user_id"`            // 接收人
	EventType string     `gorm:"index;size:40;not null" json:"event_type"` // 事件类型
	BizType   string     `gorm:"size:40;not null" json:"biz_type"`         // 业务类型
	BizID     uint       `gorm:"index;not null" json:"biz_id"`             // 业务ID
	Title     string     `gorm:"size:255;not null" json:"title"`           // 标题
	Data      JSON       `gorm:"type:json" json:"data"`                    // 结构化内容
	DedupKey  string     `gorm:"uniqueIndex;size:128;not null" json:"-"`   // 去重键
	ReadAt    *time.Time `json:"read_at"`                                  // 已读时间
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                  // 创建时间
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}
