package models

import (
	"time"
)

// PaymentTransaction 支付交易（一次网关支付尝试）
type PaymentTransaction struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                               // 主键
	BookingID         uint       `gorm:"index;not null" json:"booking_id"`                                                   // 预订ID
	CustomerID        uint       `gorm:"index;not null" json:"customer_id"`                                                  // 付款用户ID
	Gateway           string     `gorm:"size:20;not null;uniqueIndex:idx_payment_txn_gateway_ref,priority:1" json:"gateway"` // 网关
	TxnRef            string     `gorm:"size:64;not null;uniqueIndex:idx_payment_txn_gateway_ref,priority:2" json:"txn_ref"` // 商户侧交易号
	InFlightBookingID *uint      `gorm:"uniqueIndex" json:"-"`                                                               // 进行中占位，仅 initiated 时等于 booking_id
	Amount            Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                                          // 支付金额
	Currency          string     `gorm:"size:8;not null" json:"currency"`                                                    // 币种
	Status            string     `gorm:"index;size:20;not null" json:"status"`                                               // 内部状态
	RawStatus         string     `gorm:"size:32" json:"raw_status"`                                                          // 网关原始结果码
	ProviderTxnNo     string     `gorm:"index;size:64" json:"provider_txn_no"`                                               // 网关流水号
	PayURL            string     `gorm:"type:text" json:"pay_url"`                                                           // 跳转链接
	Payload           JSON       `gorm:"type:json" json:"payload"`                                                           // 下单返回数据
	ReviewRequired    bool       `gorm:"not null;default:false" json:"review_required"`                                      // 需人工复核
	FailureReason     string     `gorm:"size:64" json:"failure_reason"`                                                      // 失败原因
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at"`                                                            // 会话过期时间
	PaidAt            *time.Time `gorm:"index" json:"paid_at"`                                                               // 支付时间
	FailedAt          *time.Time `json:"failed_at"`                                                                          // 失败时间
	RefundedAt        *time.Time `json:"refunded_at"`                                                                        // 退款时间
	NotifiedAt        *time.Time `json:"notified_at"`                                                                        // 最近一次通知时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                                            // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                                            // 更新时间
}

// TableName 指定表名
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// IsExpired 会话是否已过期
func (t *PaymentTransaction) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
