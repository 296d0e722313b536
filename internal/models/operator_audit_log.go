package models

import "time"

// OperatorAuditLog 运营操作审计：资金操作与权限变更各记一条，只追加不修改
type OperatorAuditLog struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	OperatorAdminID uint      `gorm:"index;not null" json:"operator_admin_id"`
	Action          string    `gorm:"type:varchar(64);index;not null" json:"action"`
	TargetType      string    `gorm:"type:varchar(40);index:idx_operator_audit_target,priority:1;not null;default:''" json:"target_type"`
	TargetID        uint      `gorm:"index:idx_operator_audit_target,priority:2;not null;default:0" json:"target_id"`
	TargetKey       string    `gorm:"type:varchar(120);not null;default:''" json:"target_key"` // 网关、角色等非数字目标
	RequestID       string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON      JSON      `gorm:"type:json" json:"detail"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (OperatorAuditLog) TableName() string {
	return "operator_audit_logs"
}
