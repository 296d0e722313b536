package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tourbook-next/internal/constants"
)

const (
	defaultEndpoint = "https://test-payment.momo.vn"
	createPath      = "/v2/gateway/api/create"
	defaultLang     = "vi"
)

var (
	ErrConfigInvalid    = errors.New("momo config invalid")
	ErrRequestFailed    = errors.New("momo request failed")
	ErrResponseInvalid  = errors.New("momo response invalid")
	ErrPayloadInvalid   = errors.New("momo payload invalid")
	ErrSignatureInvalid = errors.New("momo signature invalid")
)

// SecretFields 需要加密存储与脱敏展示的配置项
var SecretFields = []string{"access_key", "secret_key"}

// Config MoMo 钱包配置
type Config struct {
	PartnerCode string `json:"partner_code"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"`
	IPNURL      string `json:"ipn_url"`
	RedirectURL string `json:"redirect_url"`
	RequestType string `json:"request_type"`
	Lang        string `json:"lang"`
}

// CreateInput 下单输入，金额单位为越南盾
type CreateInput struct {
	OrderID     string
	RequestID   string
	Amount      int64
	OrderInfo   string
	ExtraData   string
	IPNURL      string
	RedirectURL string
}

// CreateResult 下单结果
type CreateResult struct {
	PayURL    string
	Deeplink  string
	QRCodeURL string
	Raw       map[string]interface{}
}

// Notification IPN / 跳转回传字段
type Notification struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
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
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.PartnerCode == "" {
		return fmt.Errorf("%w: partner_code is required", ErrConfigInvalid)
	}
	if cfg.AccessKey == "" {
		return fmt.Errorf("%w: access_key is required", ErrConfigInvalid)
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return fmt.Errorf("%w: endpoint is invalid", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	c.PartnerCode = strings.TrimSpace(c.PartnerCode)
	c.AccessKey = strings.TrimSpace(c.AccessKey)
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	c.IPNURL = strings.TrimSpace(c.IPNURL)
	c.RedirectURL = strings.TrimSpace(c.RedirectURL)
	if strings.TrimSpace(c.RequestType) == "" {
		c.RequestType = constants.MomoRequestTypeWallet
	}
	if strings.TrimSpace(c.Lang) == "" {
		c.Lang = defaultLang
	}
}

// CreatePayment 调用 MoMo 创建支付
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.OrderID == "" || input.RequestID == "" || input.Amount <= 0 {
		return nil, fmt.Errorf("%w: order_id, request_id and amount are required", ErrConfigInvalid)
	}
	if input.IPNURL == "" {
		input.IPNURL = cfg.IPNURL
	}
	if input.RedirectURL == "" {
		input.RedirectURL = cfg.RedirectURL
	}
	if input.IPNURL == "" || input.RedirectURL == "" {
		return nil, fmt.Errorf("%w: ipn_url and redirect_url are required", ErrConfigInvalid)
	}
	if input.OrderInfo == "" {
		input.OrderInfo = input.OrderID
	}

	amount := strconv.FormatInt(input.Amount, 10)
	content := "accessKey=" + cfg.AccessKey +
		"&amount=" + amount +
		"&extraData=" + input.ExtraData +
		"&ipnUrl=" + input.IPNURL +
		"&orderId=" + input.OrderID +
		"&orderInfo=" + input.OrderInfo +
		"&partnerCode=" + cfg.PartnerCode +
		"&redirectUrl=" + input.RedirectURL +
		"&requestId=" + input.RequestID +
		"&requestType=" + cfg.RequestType
	body := map[string]interface{}{
		"partnerCode": cfg.PartnerCode,
		"requestId":   input.RequestID,
		"amount":      input.Amount,
		"orderId":     input.OrderID,
		"orderInfo":   input.OrderInfo,
		"redirectUrl": input.RedirectURL,
		"ipnUrl":      input.IPNURL,
		"requestType": cfg.RequestType,
		"extraData":   input.ExtraData,
		"lang":        cfg.Lang,
		"signature":   sign(cfg.SecretKey, content),
	}

	respBytes, err := postJSON(ctx, cfg.Endpoint+createPath, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		ResultCode int    `json:"resultCode"`
		Message    string `json:"message"`
		PayURL     string `json:"payUrl"`
		Deeplink   string `json:"deeplink"`
		QRCodeURL  string `json:"qrCodeUrl"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.ResultCode != constants.MomoResultSuccess || strings.TrimSpace(resp.PayURL) == "" {
		return nil, fmt.Errorf("%w: %d %s", ErrResponseInvalid, resp.ResultCode, resp.Message)
	}
	return &CreateResult{
		PayURL:    strings.TrimSpace(resp.PayURL),
		Deeplink:  strings.TrimSpace(resp.Deeplink),
		QRCodeURL: strings.TrimSpace(resp.QRCodeURL),
		Raw:       raw,
	}, nil
}

// ParseNotification 解析 IPN 请求体
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	if strings.TrimSpace(n.OrderID) == "" || strings.TrimSpace(n.Signature) == "" {
		return nil, fmt.Errorf("%w: orderId and signature are required", ErrPayloadInvalid)
	}
	return &n, nil
}

// NotificationFromQuery 解析跳转回传参数
func NotificationFromQuery(values url.Values) (*Notification, error) {
	n := &Notification{
		PartnerCode: values.Get("partnerCode"),
		OrderID:     values.Get("orderId"),
		RequestID:   values.Get("requestId"),
		OrderInfo:   values.Get("orderInfo"),
		OrderType:   values.Get("orderType"),
		Message:     values.Get("message"),
		PayType:     values.Get("payType"),
		ExtraData:   values.Get("extraData"),
		Signature:   values.Get("signature"),
	}
	var err error
	if n.Amount, err = parseInt(values.Get("amount")); err != nil {
		return nil, fmt.Errorf("%w: amount", ErrPayloadInvalid)
	}
	if n.TransID, err = parseInt(values.Get("transId")); err != nil {
		return nil, fmt.Errorf("%w: transId", ErrPayloadInvalid)
	}
	if n.ResponseTime, err = parseInt(values.Get("responseTime")); err != nil {
		return nil, fmt.Errorf("%w: responseTime", ErrPayloadInvalid)
	}
	code, err := parseInt(values.Get("resultCode"))
	if err != nil {
		return nil, fmt.Errorf("%w: resultCode", ErrPayloadInvalid)
	}
	n.ResultCode = int(code)
	if strings.TrimSpace(n.OrderID) == "" || strings.TrimSpace(n.Signature) == "" {
		return nil, fmt.Errorf("%w: orderId and signature are required", ErrPayloadInvalid)
	}
	return n, nil
}

// VerifyNotification 校验回传签名
func VerifyNotification(cfg *Config, n *Notification) error {
	if cfg == nil || cfg.SecretKey == "" {
		return ErrConfigInvalid
	}
	if n == nil || n.Signature == "" {
		return ErrSignatureInvalid
	}
	if n.PartnerCode != cfg.PartnerCode {
		return ErrSignatureInvalid
	}
	expected := SignNotification(cfg, n)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(n.Signature)))) {
		return ErrSignatureInvalid
	}
	return nil
}

// SignNotification 计算回传签名
func SignNotification(cfg *Config, n *Notification) string {
	content := "accessKey=" + cfg.AccessKey +
		"&amount=" + strconv.FormatInt(n.Amount, 10) +
		"&extraData=" + n.ExtraData +
		"&message=" + n.Message +
		"&orderId=" + n.OrderID +
		"&orderInfo=" + n.OrderInfo +
		"&orderType=" + n.OrderType +
		"&partnerCode=" + n.PartnerCode +
		"&payType=" + n.PayType +
		"&requestId=" + n.RequestID +
		"&responseTime=" + strconv.FormatInt(n.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(n.ResultCode) +
		"&transId=" + strconv.FormatInt(n.TransID, 10)
	return sign(cfg.SecretKey, content)
}

// IsSuccess 支付成功
func (n *Notification) IsSuccess() bool {
	return n.ResultCode == constants.MomoResultSuccess
}

// IsPending 已授权待扣款，不产生状态迁移
func (n *Notification) IsPending() bool {
	return n.ResultCode == constants.MomoResultAuthorized
}

// ToMap 转为审计用的原始载荷
func (n *Notification) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"partnerCode":  n.PartnerCode,
		"orderId":      n.OrderID,
		"requestId":    n.RequestID,
		"amount":       n.Amount,
		"orderInfo":    n.OrderInfo,
		"orderType":    n.OrderType,
		"transId":      n.TransID,
		"resultCode":   n.ResultCode,
		"message":      n.Message,
		"payType":      n.PayType,
		"responseTime": n.ResponseTime,
		"extraData":    n.ExtraData,
	}
}

func sign(secret, content string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseInt(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func postJSON(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// MoMo 业务错误同样返回 JSON，交给调用方解析 resultCode
		if len(respBody) > 0 && json.Valid(respBody) {
			return respBody, nil
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return respBody, nil
}
