package authz

import "fmt"

// 预置角色
const (
	RoleReadonlyAuditor = "readonly_auditor"
	RoleSupport         = "support"
	RoleFinance         = "finance"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 客服只读对账数据并处理异常，财务负责资金流转
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleReadonlyAuditor,
			Policies: []Policy{
				{Object: "/admin/payment-transactions", Action: "GET"},
				{Object: "/admin/payment-anomalies", Action: "GET"},
				{Object: "/admin/refunds", Action: "GET"},
				{Object: "/admin/payouts", Action: "GET"},
				{Object: "/admin/audit-logs", Action: "GET"},
			},
		},
		{
			Role:     RoleSupport,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/payment-anomalies/:id/resolve", Action: "POST"},
				{Object: "/admin/refunds/:id/reject", Action: "POST"},
			},
		},
		{
			Role:     RoleFinance,
			Inherits: []string{RoleSupport},
			Policies: []Policy{
				{Object: "/admin/payment-settings", Action: "GET"},
				{Object: "/admin/payment-settings/:gateway", Action: "PUT"},
				{Object: "/admin/payment-transactions/:id/void", Action: "POST"},
				{Object: "/admin/refunds/:id/confirm", Action: "POST"},
				{Object: "/admin/payouts/:id/approve", Action: "POST"},
				{Object: "/admin/payouts/:id/reject", Action: "POST"},
				{Object: "/admin/payouts/:id/mark-paid", Action: "POST"},
				{Object: "/admin/revenue/*", Action: "GET"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色，重复执行只补缺失项；运营新增的授权不受影响
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return fmt.Errorf("ensure builtin role %s failed: %w", seed.Role, err)
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			object, action, err := normalizePolicy(policy.Object, policy.Action)
			if err != nil {
				return fmt.Errorf("builtin policy %s %s: %w", policy.Action, policy.Object, err)
			}
			if _, err := s.enforcer.AddPolicy(role, object, action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
