package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tourbook-next/internal/constants"
)

const (
	defaultVersion   = "2.1.0"
	defaultLocale    = "vn"
	defaultOrderType = "other"
	defaultPayURL    = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	dateLayout       = "20060102150405"
	successCode      = "00"
)

var (
	ErrConfigInvalid    = errors.New("vnpay config invalid")
	ErrPayloadInvalid   = errors.New("vnpay payload invalid")
	ErrSignatureInvalid = errors.New("vnpay signature invalid")
)

// SecretFields 需要加密存储与脱敏展示的配置项
var SecretFields = []string{"hash_secret"}

// 越南不实行夏令时，固定 UTC+7
var vietnamZone = time.FixedZone("ICT", 7*60*60)

// Config VNPay 配置
type Config struct {
	TmnCode    string `json:"tmn_code"`
	HashSecret string `json:"hash_secret"`
	PayURL     string `json:"pay_url"`
	ReturnURL  string `json:"return_url"`
	Version    string `json:"version"`
	Locale     string `json:"locale"`
	OrderType  string `json:"order_type"`
}

// CreateInput 构造支付跳转地址的输入
type CreateInput struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	ClientIP  string
	ReturnURL string
	CreatedAt time.Time
	ExpireAt  time.Time
}

// Notification IPN / 跳转回传的关键字段
type Notification struct {
	TxnRef            string
	Amount            int64 // 越南盾，AmountMinor / 100 取整
	AmountMinor       int64 // vnp_Amount 原值（越南盾 ×100）
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           string
	Params            url.Values
}

var ackMessages = map[string]string{
	constants.VnpayRspSuccess:          "Confirm Success",
	constants.VnpayRspOrderNotFound:    "Order not found",
	constants.VnpayRspAlreadyConfirmed: "Order already confirmed",
	constants.VnpayRspInvalidAmount:    "Invalid amount",
	constants.VnpayRspInvalidSignature: "Invalid signature",
	constants.VnpayRspUnknownError:     "Unknown error",
}

// Ack IPN 应答体
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// NewAck 根据应答码构造应答
func NewAck(code string) Ack {
	message, ok := ackMessages[code]
	if !ok {
		code = constants.VnpayRspUnknownError
		message = ackMessages[code]
	}
	return Ack{RspCode: code, Message: message}
}

// ParseConfig 解析配置
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.TmnCode = strings.TrimSpace(cfg.TmnCode)
	cfg.HashSecret = strings.TrimSpace(cfg.HashSecret)
	cfg.PayURL = strings.TrimSpace(cfg.PayURL)
	if cfg.PayURL == "" {
		cfg.PayURL = defaultPayURL
	}
	cfg.ReturnURL = strings.TrimSpace(cfg.ReturnURL)
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.Locale == "" {
		cfg.Locale = defaultLocale
	}
	if cfg.OrderType == "" {
		cfg.OrderType = defaultOrderType
	}
	return &cfg, nil
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.TmnCode == "" {
		return fmt.Errorf("%w: tmn_code is required", ErrConfigInvalid)
	}
	if cfg.HashSecret == "" {
		return fmt.Errorf("%w: hash_secret is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.PayURL); err != nil {
		return fmt.Errorf("%w: pay_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// BuildPayURL 生成带签名的支付跳转地址
func BuildPayURL(cfg *Config, input CreateInput) (string, error) {
	if err := ValidateConfig(cfg); err != nil {
		return "", err
	}
	if input.ReturnURL == "" {
		input.ReturnURL = cfg.ReturnURL
	}
	if input.TxnRef == "" || input.Amount <= 0 || input.ReturnURL == "" {
		return "", fmt.Errorf("%w: txn_ref, amount and return_url are required", ErrConfigInvalid)
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	if input.ExpireAt.IsZero() {
		input.ExpireAt = input.CreatedAt.Add(15 * time.Minute)
	}
	if input.OrderInfo == "" {
		input.OrderInfo = "Thanh toan " + input.TxnRef
	}
	if input.ClientIP == "" {
		input.ClientIP = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", cfg.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(input.Amount*100, 10))
	params.Set("vnp_CurrCode", constants.CurrencyVND)
	params.Set("vnp_TxnRef", input.TxnRef)
	params.Set("vnp_OrderInfo", input.OrderInfo)
	params.Set("vnp_OrderType", cfg.OrderType)
	params.Set("vnp_Locale", cfg.Locale)
	params.Set("vnp_ReturnUrl", input.ReturnURL)
	params.Set("vnp_IpAddr", input.ClientIP)
	params.Set("vnp_CreateDate", input.CreatedAt.In(vietnamZone).Format(dateLayout))
	params.Set("vnp_ExpireDate", input.ExpireAt.In(vietnamZone).Format(dateLayout))

	query := signContent(params)
	secureHash := sign(cfg.HashSecret, query)
	separator := "?"
	if strings.Contains(cfg.PayURL, "?") {
		separator = "&"
	}
	return cfg.PayURL + separator + query + "&vnp_SecureHash=" + secureHash, nil
}

// VerifyQuery 校验回传签名
func VerifyQuery(cfg *Config, values url.Values) error {
	if cfg == nil || cfg.HashSecret == "" {
		return ErrConfigInvalid
	}
	received := strings.ToLower(strings.TrimSpace(values.Get("vnp_SecureHash")))
	if received == "" {
		return ErrSignatureInvalid
	}
	expected := QuerySignature(cfg, values)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return ErrSignatureInvalid
	}
	if tmn := values.Get("vnp_TmnCode"); tmn != "" && tmn != cfg.TmnCode {
		return ErrSignatureInvalid
	}
	return nil
}

// QuerySignature 计算回传参数的 vnp_SecureHash（签名字段本身不参与）
func QuerySignature(cfg *Config, values url.Values) string {
	return sign(cfg.HashSecret, signContent(values))
}

// ParseQuery 提取回传字段，金额换算回越南盾
func ParseQuery(values url.Values) (*Notification, error) {
	n := &Notification{
		TxnRef:            strings.TrimSpace(values.Get("vnp_TxnRef")),
		ResponseCode:      strings.TrimSpace(values.Get("vnp_ResponseCode")),
		TransactionStatus: strings.TrimSpace(values.Get("vnp_TransactionStatus")),
		TransactionNo:     strings.TrimSpace(values.Get("vnp_TransactionNo")),
		BankCode:          strings.TrimSpace(values.Get("vnp_BankCode")),
		PayDate:           strings.TrimSpace(values.Get("vnp_PayDate")),
		Params:            values,
	}
	if n.TxnRef == "" {
		return nil, fmt.Errorf("%w: vnp_TxnRef is required", ErrPayloadInvalid)
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(values.Get("vnp_Amount")), 10, 64)
	if err != nil || raw < 0 {
		return nil, fmt.Errorf("%w: vnp_Amount", ErrPayloadInvalid)
	}
	n.AmountMinor = raw
	n.Amount = raw / 100
	return n, nil
}

// IsSuccess 响应码与交易状态均为 00 才视为成功
func (n *Notification) IsSuccess() bool {
	return n.ResponseCode == successCode && n.TransactionStatus == successCode
}

// RawStatus 组合网关原始状态
func (n *Notification) RawStatus() string {
	return n.ResponseCode + "/" + n.TransactionStatus
}

// ToMap 转为审计用的原始载荷（不含签名）
func (n *Notification) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(n.Params))
	for k := range n.Params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		out[k] = n.Params.Get(k)
	}
	return out
}

func signContent(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !strings.HasPrefix(k, "vnp_") || k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		if values.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(values.Get(k)))
	}
	return strings.Join(pairs, "&")
}

func sign(secret, content string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
