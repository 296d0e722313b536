package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	adminObjectRoot = "/admin/"
	casbinTableName = "casbin_rule"
	adminSubjectFmt = "admin:%d"
	rolePrefix      = "role:"
	roleAnchor      = "role:__anchor__"
	actionWildcard  = "*"
)

var (
	ErrUnavailable      = errors.New("authz service unavailable")
	ErrAdminRequired    = errors.New("admin id is required")
	ErrRoleRequired     = errors.New("role is required")
	ErrRoleReserved     = errors.New("reserved role is not allowed")
	ErrRoleNotFound     = errors.New("role not found")
	ErrObjectOutOfScope = errors.New("policy object must be an admin endpoint")
	ErrActionInvalid    = errors.New("policy action is invalid")
)

var allowedActions = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {}, actionWildcard: {},
}

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 角色对管理端接口的授权
type Policy struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// RoleView 角色及其直接策略、继承关系
type RoleView struct {
	Role     string   `json:"role"`
	Builtin  bool     `json:"builtin"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service 运营后台 RBAC，策略持久化在 casbin_rule
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// Enforce 执行授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceAdmin 按管理员落库角色判定
func (s *Service) EnforceAdmin(adminID uint, obj, act string) (bool, error) {
	return s.Enforce(SubjectForAdmin(adminID), obj, act)
}

// EnforceAdminWithRoles 令牌角色与落库角色任一放行即可
func (s *Service) EnforceAdminWithRoles(adminID uint, roles []string, obj, act string) (bool, error) {
	for _, role := range roles {
		normalized, err := NormalizeRole(role)
		if err != nil {
			continue
		}
		allow, err := s.Enforce(normalized, obj, act)
		if err != nil || allow {
			return allow, err
		}
	}
	if adminID == 0 {
		return false, nil
	}
	return s.EnforceAdmin(adminID, obj, act)
}

func (s *Service) roleExists(role string) (bool, error) {
	exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
	if err != nil {
		return false, fmt.Errorf("check role failed: %w", err)
	}
	return exists, nil
}

// EnsureRole 确保角色存在，返回规范化名称
func (s *Service) EnsureRole(role string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	exists, err := s.roleExists(normalized)
	if err != nil || exists {
		return normalized, err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role failed: %w", err)
	}
	return normalized, nil
}

// ListRoles 列出角色及其策略
func (s *Service) ListRoles() ([]RoleView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	anchored, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 1, roleAnchor)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	builtin := make(map[string]struct{})
	for _, seed := range BuiltinRoleSeeds() {
		if name, err := NormalizeRole(seed.Role); err == nil {
			builtin[name] = struct{}{}
		}
	}

	views := make([]RoleView, 0, len(anchored))
	for _, rule := range anchored {
		if len(rule) < 1 {
			continue
		}
		role := rule[0]
		policies, err := s.rolePolicies(role)
		if err != nil {
			return nil, err
		}
		_, isBuiltin := builtin[role]
		views = append(views, RoleView{
			Role:     role,
			Builtin:  isBuiltin,
			Inherits: s.parentRoles(role),
			Policies: policies,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Role < views[j].Role })
	return views, nil
}

func (s *Service) parentRoles(role string) []string {
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, role)
	if err != nil {
		return []string{}
	}
	parents := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) >= 2 && rule[1] != roleAnchor {
			parents = append(parents, rule[1])
		}
	}
	sort.Strings(parents)
	return parents
}

func (s *Service) rolePolicies(role string) ([]Policy, error) {
	rules, err := s.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return nil, fmt.Errorf("list role policies failed: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{Object: rule[1], Action: rule[2]})
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Object == policies[j].Object {
			return policies[i].Action < policies[j].Action
		}
		return policies[i].Object < policies[j].Object
	})
	return policies, nil
}

// normalizePolicy 仅允许授权管理端接口
func normalizePolicy(object, action string) (string, string, error) {
	normalizedObject := NormalizeObject(object)
	if !strings.HasPrefix(normalizedObject, adminObjectRoot) {
		return "", "", ErrObjectOutOfScope
	}
	normalizedAction := NormalizeAction(action)
	if _, ok := allowedActions[normalizedAction]; !ok {
		return "", "", ErrActionInvalid
	}
	return normalizedObject, normalizedAction, nil
}

// GrantRolePolicy 为角色授予策略，角色不存在时自动创建
func (s *Service) GrantRolePolicy(role, object, action string) error {
	normalizedObject, normalizedAction, err := normalizePolicy(object, action)
	if err != nil {
		return err
	}
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, normalizedObject, normalizedAction); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色策略，返回是否有策略被移除
func (s *Service) RevokeRolePolicy(role, object, action string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	normalizedObject, normalizedAction, err := normalizePolicy(object, action)
	if err != nil {
		return false, err
	}
	normalizedRole, err := NormalizeRole(role)
	if err != nil {
		return false, err
	}
	removed, err := s.enforcer.RemovePolicy(normalizedRole, normalizedObject, normalizedAction)
	if err != nil {
		return false, fmt.Errorf("revoke policy failed: %w", err)
	}
	return removed, nil
}

// SetAdminRoles 覆盖设置管理员落库角色；角色必须已存在
func (s *Service) SetAdminRoles(adminID uint, roles []string) ([]string, error) {
	if adminID == 0 {
		return nil, ErrAdminRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		name, err := NormalizeRole(role)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		exists, err := s.roleExists(name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	sort.Strings(normalized)

	subject := SubjectForAdmin(adminID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return nil, fmt.Errorf("clear admin roles failed: %w", err)
	}
	for _, role := range normalized {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, role); err != nil {
			return nil, fmt.Errorf("assign admin role failed: %w", err)
		}
	}
	return normalized, nil
}

// GetAdminRoles 查询管理员落库角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, ErrAdminRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) && role != roleAnchor {
			filtered = append(filtered, role)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// IsValidationError 判断是否为调用方输入问题
func IsValidationError(err error) bool {
	for _, target := range []error{ErrAdminRequired, ErrRoleRequired, ErrRoleReserved, ErrRoleNotFound, ErrObjectOutOfScope, ErrActionInvalid} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SubjectForAdmin 管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf(adminSubjectFmt, adminID)
}

// NormalizeRole "Finance Lead" -> role:finance_lead
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	normalized = strings.TrimPrefix(normalized, rolePrefix)
	normalized = strings.Join(strings.Fields(normalized), "_")
	if normalized == "" {
		return "", ErrRoleRequired
	}
	normalized = rolePrefix + normalized
	if normalized == roleAnchor {
		return "", ErrRoleReserved
	}
	return normalized, nil
}

// NormalizeObject 去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	return normalized
}

// NormalizeAction 统一为大写 HTTP 方法
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
