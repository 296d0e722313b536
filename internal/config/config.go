package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/tourbook-next/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	UserJWT  JWTConfig      `mapstructure:"user_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Revenue  RevenueConfig  `mapstructure:"revenue"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Console:    c.Console,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 校验配置（令牌由认证服务签发）
type JWTConfig struct {
	SecretKey string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit RateLimitConfig `mapstructure:"checkout_rate_limit"`
	RequestRateLimit  RateLimitConfig `mapstructure:"request_rate_limit"` // 退款与提现申请
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// PaymentConfig 支付配置
type PaymentConfig struct {
	ConfigCacheTTLSeconds int            `mapstructure:"config_cache_ttl_seconds"`
	CheckoutExpireMinutes int            `mapstructure:"checkout_expire_minutes"`
	SettingSecretKey      string         `mapstructure:"setting_secret_key"` // 网关密钥落库加密主密钥
	PublicBaseURL         string         `mapstructure:"public_base_url"`    // 回调地址前缀
	ReturnRedirectURL     string         `mapstructure:"return_redirect_url"`
	StaleCheckScanSeconds int            `mapstructure:"stale_check_scan_seconds"` // 0 关闭过期会话巡检
	Momo                  MomoEnvConfig  `mapstructure:"momo"`
	Vnpay                 VnpayEnvConfig `mapstructure:"vnpay"`
}

// MomoEnvConfig MoMo 环境变量兜底配置
type MomoEnvConfig struct {
	PartnerCode string `mapstructure:"partner_code"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Endpoint    string `mapstructure:"endpoint"`
	IPNURL      string `mapstructure:"ipn_url"`
	RedirectURL string `mapstructure:"redirect_url"`
}

// VnpayEnvConfig VNPay 环境变量兜底配置
type VnpayEnvConfig struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"`
	ReturnURL  string `mapstructure:"return_url"`
}

// ToMap 转为网关配置 map，字段为空表示未配置
func (c MomoEnvConfig) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"partner_code": c.PartnerCode,
		"access_key":   c.AccessKey,
		"secret_key":   c.SecretKey,
		"endpoint":     c.Endpoint,
		"ipn_url":      c.IPNURL,
		"redirect_url": c.RedirectURL,
	}
}

// ToMap 转为网关配置 map，字段为空表示未配置
func (c VnpayEnvConfig) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"tmn_code":    c.TmnCode,
		"hash_secret": c.HashSecret,
		"pay_url":     c.PayURL,
		"return_url":  c.ReturnURL,
	}
}

// RevenueConfig 营收报表配置
type RevenueConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// gatewayEnvBindings 网关兜底配置与历史环境变量名的映射
var gatewayEnvBindings = map[string]string{
	"payment.momo.partner_code": "MOMO_PARTNER_CODE",
	"payment.momo.access_key":   "MOMO_ACCESS_KEY",
	"payment.momo.secret_key":   "MOMO_SECRET_KEY",
	"payment.momo.endpoint":     "MOMO_ENDPOINT",
	"payment.momo.ipn_url":      "MOMO_IPN_URL",
	"payment.momo.redirect_url": "MOMO_REDIRECT_URL",
	"payment.vnpay.tmn_code":    "VNPAY_TMN_CODE",
	"payment.vnpay.hash_secret": "VNPAY_HASH_SECRET",
	"payment.vnpay.pay_url":     "VNPAY_PAY_URL",
	"payment.vnpay.return_url":  "VNPAY_RETURN_URL",
}

// Load 从 config.yml 加载配置
func Load() *Config {
	loadDotEnv(".env")
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../") // 如果从 cmd/server 运行
	v.AddConfigPath("./etc")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT
	for key, env := range gatewayEnvBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

// loadDotEnv 加载本地 .env，不覆盖已存在的环境变量
func loadDotEnv(path string) {
	envMap, err := godotenv.Read(path)
	if err != nil {
		return
	}
	for key, value := range envMap {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "tourbook.log")
	v.SetDefault("log.level", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.console", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/tourbook.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "tourbook-auth")
	v.SetDefault("user_jwt.secret", "user-change-me-in-production")
	v.SetDefault("user_jwt.issuer", "tourbook-auth")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tb")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"critical": 6,
		"default":  3,
		"low":      1,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Accept-Language",
		"Authorization",
		"X-Requested-With",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_requests", 10)
	v.SetDefault("security.request_rate_limit.window_seconds", 300)
	v.SetDefault("security.request_rate_limit.max_requests", 5)
	v.SetDefault("payment.config_cache_ttl_seconds", 60)
	v.SetDefault("payment.checkout_expire_minutes", 15)
	v.SetDefault("payment.stale_check_scan_seconds", 300)
	v.SetDefault("payment.setting_secret_key", "")
	v.SetDefault("payment.public_base_url", "http://127.0.0.1:8080")
	v.SetDefault("payment.return_redirect_url", "")
	v.SetDefault("payment.momo.endpoint", "https://test-payment.momo.vn")
	v.SetDefault("payment.vnpay.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("revenue.cache_ttl_seconds", 30)
}
