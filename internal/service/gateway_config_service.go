package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/constants"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/payment/momo"
	"github.com/tourbook-next/internal/payment/vnpay"
	"github.com/tourbook-next/internal/repository"
)

// 配置来源
const (
	GatewayConfigSourceDatabase    = "database"
	GatewayConfigSourceEnvironment = "environment"
	GatewayConfigSourceNone        = "none"
)

const defaultGatewayConfigTTL = 60 * time.Second

// SupportedGateways 支持的网关，按展示顺序排列
var SupportedGateways = []string{constants.GatewayMomo, constants.GatewayVnpay}

// GatewayConfig 解析后的网关配置，Values 含明文密钥，仅供结账与验签使用
type GatewayConfig struct {
	Gateway string
	Source  string
	Values  map[string]interface{}
}

// Momo 转为 MoMo 配置
func (c *GatewayConfig) Momo() (*momo.Config, error) {
	if c == nil || c.Gateway != constants.GatewayMomo {
		return nil, ErrGatewayUnsupported
	}
	return momo.ParseConfig(c.Values)
}

// Vnpay 转为 VNPay 配置
func (c *GatewayConfig) Vnpay() (*vnpay.Config, error) {
	if c == nil || c.Gateway != constants.GatewayVnpay {
		return nil, ErrGatewayUnsupported
	}
	return vnpay.ParseConfig(c.Values)
}

// MaskedGatewaySetting 管理端展示的脱敏配置
type MaskedGatewaySetting struct {
	Gateway   string      `json:"gateway"`
	IsActive  bool        `json:"is_active"`
	Source    string      `json:"source"`
	Config    models.JSON `json:"config"`
	UpdatedBy uint        `json:"updated_by,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// UpsertGatewaySettingInput 管理端更新网关配置
type UpsertGatewaySettingInput struct {
	Gateway  string
	IsActive bool
	Config   map[string]interface{}
	AdminID  uint
}

// GatewayConfigService 网关配置解析（数据库优先，环境变量兜底，进程内短时缓存）
type GatewayConfigService struct {
	repo          repository.PaymentSettingRepository
	envDefaults   map[string]map[string]interface{}
	publicBaseURL string
	sealer        *secretSealer
	cache         *cache.TTLCache[*GatewayConfig]
}

// NewGatewayConfigService 创建网关配置服务
func NewGatewayConfigService(repo repository.PaymentSettingRepository, cfg config.PaymentConfig) (*GatewayConfigService, error) {
	sealer, err := newSecretSealer(cfg.SettingSecretKey)
	if err != nil {
		return nil, err
	}
	if !sealer.Enabled() {
		logger.Warnw("payment_setting_seal_disabled", "reason", "payment.setting_secret_key is empty")
	}
	ttl := defaultGatewayConfigTTL
	if cfg.ConfigCacheTTLSeconds > 0 {
		ttl = time.Duration(cfg.ConfigCacheTTLSeconds) * time.Second
	}
	return &GatewayConfigService{
		repo: repo,
		envDefaults: map[string]map[string]interface{}{
			constants.GatewayMomo:  cfg.Momo.ToMap(),
			constants.GatewayVnpay: cfg.Vnpay.ToMap(),
		},
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		sealer:        sealer,
		cache:         cache.NewTTLCache[*GatewayConfig](ttl),
	}, nil
}

// Resolve 获取网关生效配置；数据库无有效配置且环境变量不完整时返回 ErrConfigNotFound
func (s *GatewayConfigService) Resolve(gateway string) (*GatewayConfig, error) {
	gateway, err := normalizeGateway(gateway)
	if err != nil {
		return nil, err
	}
	return s.cache.Load(gateway, func() (*GatewayConfig, error) {
		return s.load(gateway)
	})
}

// Invalidate 同步清除网关缓存
func (s *GatewayConfigService) Invalidate(gateway string) {
	s.cache.Delete(strings.ToLower(strings.TrimSpace(gateway)))
}

func (s *GatewayConfigService) load(gateway string) (*GatewayConfig, error) {
	setting, err := s.repo.GetByGateway(gateway)
	if err != nil {
		return nil, err
	}
	if setting != nil && setting.IsActive {
		values, err := s.openConfig(gateway, setting.Config)
		if err == nil {
			values = s.withCallbackDefaults(gateway, values)
			err = validateGatewayConfig(gateway, values)
		}
		if err == nil {
			return &GatewayConfig{Gateway: gateway, Source: GatewayConfigSourceDatabase, Values: values}, nil
		}
		logger.Warnw("payment_setting_unusable", "gateway", gateway, "error", err)
	}

	values := s.withCallbackDefaults(gateway, cloneValues(s.envDefaults[gateway]))
	if err := validateGatewayConfig(gateway, values); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, gateway)
	}
	return &GatewayConfig{Gateway: gateway, Source: GatewayConfigSourceEnvironment, Values: values}, nil
}

// ListMasked 列出全部网关配置（密钥脱敏）
func (s *GatewayConfigService) ListMasked() ([]MaskedGatewaySetting, error) {
	settings, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	byGateway := make(map[string]models.PaymentSetting, len(settings))
	for _, setting := range settings {
		byGateway[setting.Gateway] = setting
	}

	items := make([]MaskedGatewaySetting, 0, len(SupportedGateways))
	for _, gateway := range SupportedGateways {
		if setting, ok := byGateway[gateway]; ok {
			items = append(items, s.maskSetting(&setting))
			continue
		}
		item := MaskedGatewaySetting{Gateway: gateway, Source: GatewayConfigSourceNone, Config: models.JSON{}}
		env := cloneValues(s.envDefaults[gateway])
		if validateGatewayConfig(gateway, env) == nil {
			item.IsActive = true
			item.Source = GatewayConfigSourceEnvironment
			item.Config = maskValues(gateway, env)
		}
		items = append(items, item)
	}
	return items, nil
}

// Upsert 写入网关配置并同步失效缓存；密钥字段留空或回传脱敏值时保留原值
func (s *GatewayConfigService) Upsert(input UpsertGatewaySettingInput) (*MaskedGatewaySetting, error) {
	gateway, err := normalizeGateway(input.Gateway)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByGateway(gateway)
	if err != nil {
		return nil, err
	}
	var previous map[string]interface{}
	if existing != nil {
		if previous, err = s.openConfig(gateway, existing.Config); err != nil {
			// 主密钥轮换后旧值无法解密，要求重新提交密钥
			logger.Warnw("payment_setting_previous_unreadable", "gateway", gateway, "error", err)
			previous = nil
		}
	}

	values := make(map[string]interface{}, len(input.Config))
	for key, value := range input.Config {
		if str, ok := value.(string); ok {
			value = strings.TrimSpace(str)
		}
		values[key] = value
	}
	for _, field := range secretFields(gateway) {
		incoming, _ := values[field].(string)
		old, _ := previous[field].(string)
		if old != "" && (incoming == "" || incoming == MaskSecret(old)) {
			values[field] = old
		}
	}
	if input.IsActive {
		if err := validateGatewayConfig(gateway, s.withCallbackDefaults(gateway, cloneValues(values))); err != nil {
			return nil, err
		}
	}

	sealed, err := s.sealConfig(gateway, values)
	if err != nil {
		return nil, err
	}
	setting := &models.PaymentSetting{
		Gateway:   gateway,
		IsActive:  input.IsActive,
		Config:    sealed,
		UpdatedBy: input.AdminID,
	}
	if err := s.repo.Upsert(setting); err != nil {
		return nil, err
	}
	s.Invalidate(gateway)
	logger.Infow("payment_setting_updated", "gateway", gateway, "is_active", input.IsActive, "admin_id", input.AdminID)

	saved, err := s.repo.GetByGateway(gateway)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		saved = setting
	}
	masked := s.maskSetting(saved)
	return &masked, nil
}

func (s *GatewayConfigService) maskSetting(setting *models.PaymentSetting) MaskedGatewaySetting {
	item := MaskedGatewaySetting{
		Gateway:   setting.Gateway,
		IsActive:  setting.IsActive,
		Source:    GatewayConfigSourceDatabase,
		UpdatedBy: setting.UpdatedBy,
	}
	if !setting.UpdatedAt.IsZero() {
		updatedAt := setting.UpdatedAt
		item.UpdatedAt = &updatedAt
	}
	values, err := s.openConfig(setting.Gateway, setting.Config)
	if err != nil {
		// 无法解密时只暴露字段存在性
		values = cloneValues(setting.Config)
		for _, field := range secretFields(setting.Gateway) {
			if v, _ := values[field].(string); v != "" {
				values[field] = "********"
			}
		}
		item.Config = models.JSON(values)
		return item
	}
	item.Config = maskValues(setting.Gateway, values)
	return item
}

func (s *GatewayConfigService) openConfig(gateway string, stored models.JSON) (map[string]interface{}, error) {
	values := cloneValues(stored)
	for _, field := range secretFields(gateway) {
		raw, ok := values[field].(string)
		if !ok || raw == "" {
			continue
		}
		plain, err := s.sealer.Open(gateway, raw)
		if err != nil {
			return nil, err
		}
		values[field] = plain
	}
	return values, nil
}

func (s *GatewayConfigService) sealConfig(gateway string, values map[string]interface{}) (models.JSON, error) {
	out := models.JSON(cloneValues(values))
	for _, field := range secretFields(gateway) {
		raw, ok := out[field].(string)
		if !ok || raw == "" {
			continue
		}
		sealed, err := s.sealer.Seal(gateway, raw)
		if err != nil {
			return nil, err
		}
		out[field] = sealed
	}
	return out, nil
}

// withCallbackDefaults 未配置回调地址时基于 public_base_url 生成
func (s *GatewayConfigService) withCallbackDefaults(gateway string, values map[string]interface{}) map[string]interface{} {
	if s.publicBaseURL == "" {
		return values
	}
	fill := func(key, path string) {
		if v, _ := values[key].(string); strings.TrimSpace(v) == "" {
			values[key] = s.publicBaseURL + path
		}
	}
	switch gateway {
	case constants.GatewayMomo:
		fill("ipn_url", "/api/v1/payments/momo/ipn")
		fill("redirect_url", "/api/v1/payments/momo/return")
	case constants.GatewayVnpay:
		fill("return_url", "/api/v1/payments/vnpay/return")
	}
	return values
}

func validateGatewayConfig(gateway string, values map[string]interface{}) error {
	switch gateway {
	case constants.GatewayMomo:
		cfg, err := momo.ParseConfig(values)
		if err == nil {
			err = momo.ValidateConfig(cfg)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
		}
	case constants.GatewayVnpay:
		cfg, err := vnpay.ParseConfig(values)
		if err == nil {
			err = vnpay.ValidateConfig(cfg)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
		}
	default:
		return ErrGatewayUnsupported
	}
	return nil
}

func maskValues(gateway string, values map[string]interface{}) models.JSON {
	out := models.JSON(cloneValues(values))
	for _, field := range secretFields(gateway) {
		if raw, ok := out[field].(string); ok {
			out[field] = MaskSecret(raw)
		}
	}
	return out
}

func secretFields(gateway string) []string {
	switch gateway {
	case constants.GatewayMomo:
		return momo.SecretFields
	case constants.GatewayVnpay:
		return vnpay.SecretFields
	}
	return nil
}

func normalizeGateway(gateway string) (string, error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	for _, supported := range SupportedGateways {
		if gateway == supported {
			return gateway, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrGatewayUnsupported, gateway)
}

func cloneValues(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
