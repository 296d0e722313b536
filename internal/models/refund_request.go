package models

import (
	"time"
)

// RefundRequest 退款申请
type RefundRequest struct {
	ID                   uint       `gorm:"primarykey" json:"id"`                      // 主键
	TransactionID        uint       `gorm:"index;not null" json:"transaction_id"`      // 支付交易ID
	BookingID            uint       `gorm:"index;not null" json:"booking_id"`          // 预订ID
	CustomerID           uint       `gorm:"index;not null" json:"customer_id"`         // 申请人
	PendingTransactionID *uint      `gorm:"uniqueIndex" json:"-"`                      // 待处理占位，仅 pending 时等于 transaction_id
	Amount               Money      `gorm:"type:decimal(20,2);not null" json:"amount"` // 申请金额
	Reason               string     `gorm:"type:text" json:"reason"`                   // 申请原因
	Status               string     `gorm:"index;size:20;not null" json:"status"`      // 状态
	DecidedBy            uint       `json:"decided_by"`                                // 审核人
	DecisionNote         string     `gorm:"type:text" json:"decision_note"`            // 审核备注/拒绝原因
	DecidedAt            *time.Time `json:"decided_at"`                                // 审核时间
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt            time.Time  `json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (RefundRequest) TableName() string {
	return "refund_requests"
}
