package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentNotification 网关通知流水（仅审计，不参与状态判断）
type PaymentNotification struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                // 主键
	Gateway       string         `gorm:"index;size:20;not null" json:"gateway"`               // 网关
	TxnRef        string         `gorm:"index;size:64" json:"txn_ref"`                        // 商户侧交易号
	TransactionID *uint          `gorm:"index" json:"transaction_id"`                         // 关联交易
	ResultCode    string         `gorm:"size:32" json:"result_code"`                          // 网关结果码
	Amount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 通知金额
	Verdict       string         `gorm:"index;size:32;not null" json:"verdict"`               // 处理结论
	Payload       datatypes.JSON `json:"payload"`                                             // 原始载荷
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                             // 接收时间
}

// TableName 指定表名
func (PaymentNotification) TableName() string {
	return "payment_notifications"
}

// PaymentAnomaly 对账异常（待人工处理）
type PaymentAnomaly struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	Gateway        string         `gorm:"index;size:20;not null" json:"gateway"`                        // 网关
	TxnRef         string         `gorm:"index;size:64" json:"txn_ref"`                                 // 商户侧交易号
	TransactionID  *uint          `gorm:"index" json:"transaction_id"`                                  // 关联交易
	Kind           string         `gorm:"index;size:32;not null" json:"kind"`                           // 异常类型
	ExpectedAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"expected_amount"` // 应付金额
	ReceivedAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"received_amount"` // 通知金额
	Detail         string         `gorm:"type:text" json:"detail"`                                      // 说明
	Payload        datatypes.JSON `json:"payload"`                                                      // 原始载荷
	Resolved       bool           `gorm:"index;not null;default:false" json:"resolved"`                 // 是否已处理
	ResolvedBy     uint           `json:"resolved_by"`                                                  // 处理人
	ResolvedNote   string         `gorm:"type:text" json:"resolved_note"`                               // 处理备注
	ResolvedAt     *time.Time     `json:"resolved_at"`                                                  // 处理时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `json:"updated_at"`                                                   // 更新时间
}

// TableName 指定表名
func (PaymentAnomaly) TableName() string {
	return "payment_anomalies"
}
