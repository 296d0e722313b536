package service

import (
	"strings"
	"time"

	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/repository"
)

// 审计动作
const (
	AuditActionSettingUpsert     = "payment_setting_upsert"
	AuditActionTransactionVoid   = "transaction_void"
	AuditActionAnomalyResolve    = "anomaly_resolve"
	AuditActionRefundConfirm     = "refund_confirm"
	AuditActionRefundReject      = "refund_reject"
	AuditActionPayoutApprove     = "payout_approve"
	AuditActionPayoutReject      = "payout_reject"
	AuditActionPayoutMarkPaid    = "payout_mark_paid"
	AuditActionAdminRolesSet     = "admin_roles_set"
	AuditActionAuthzPolicyGrant  = "authz_policy_grant"
	AuditActionAuthzPolicyRevoke = "authz_policy_revoke"
)

// OperatorAuditInput 审计记录输入
type OperatorAuditInput struct {
	OperatorAdminID uint
	Action          string
	TargetType      string
	TargetID        uint
	TargetKey       string
	RequestID       string
	Detail          models.JSON
}

// OperatorAuditService 运营审计服务
type OperatorAuditService struct {
	repo repository.OperatorAuditRepository
	now  func() time.Time
}

// NewOperatorAuditService 创建运营审计服务
func NewOperatorAuditService(repo repository.OperatorAuditRepository) *OperatorAuditService {
	return &OperatorAuditService{repo: repo, now: time.Now}
}

// Record 记录一次运营操作，缺少操作人或动作时忽略
func (s *OperatorAuditService) Record(input OperatorAuditInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	action := strings.TrimSpace(input.Action)
	if input.OperatorAdminID == 0 || action == "" {
		return nil
	}
	return s.repo.Create(&models.OperatorAuditLog{
		OperatorAdminID: input.OperatorAdminID,
		Action:          action,
		TargetType:      strings.TrimSpace(input.TargetType),
		TargetID:        input.TargetID,
		TargetKey:       strings.TrimSpace(input.TargetKey),
		RequestID:       strings.TrimSpace(input.RequestID),
		DetailJSON:      input.Detail,
		CreatedAt:       s.now(),
	})
}

// List 管理端查询审计日志
func (s *OperatorAuditService) List(filter repository.OperatorAuditListFilter) ([]models.OperatorAuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.OperatorAuditLog{}, 0, nil
	}
	return s.repo.List(filter)
}
