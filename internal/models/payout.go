package models

import (
	"time"
)

// PayoutRequest 导游提现申请
type PayoutRequest struct {
	ID            uint       `gorm:"primarykey" json:"id"`                      // 主键
	GuideID       uint       `gorm:"index;not null" json:"guide_id"`            // 导游ID
	Amount        Money      `gorm:"type:decimal(20,2);not null" json:"amount"` // 提现金额
	Status        string     `gorm:"index;size:20;not null" json:"status"`      // 状态
	Note          string     `gorm:"type:text" json:"note"`                     // 申请备注
	DecidedBy     uint       `json:"decided_by"`                                // 审核人
	RejectReason  string     `gorm:"type:text" json:"reject_reason"`            // 拒绝原因
	PaidReference string     `gorm:"size:128" json:"paid_reference"`            // 打款凭证号
	ApprovedAt    *time.Time `json:"approved_at"`                               // 审核通过时间
	PaidAt        *time.Time `json:"paid_at"`                                   // 打款时间
	RejectedAt    *time.Time `json:"rejected_at"`                               // 拒绝时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// GuidePayoutAccount 导游提现占用额度（pending/approved/paid 合计）
type GuidePayoutAccount struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                            // 主键
	GuideID           uint      `gorm:"uniqueIndex;not null" json:"guide_id"`                            // 导游ID
	OutstandingAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"outstanding_amount"` // 已占用额度
	CreatedAt         time.Time `json:"created_at"`                                                      // 创建时间
	UpdatedAt         time.Time `json:"updated_at"`                                                      // 更新时间
}

// TableName 指定表名
func (GuidePayoutAccount) TableName() string {
	return "guide_payout_accounts"
}
