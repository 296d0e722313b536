package momo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func testConfig(endpoint string) *Config {
	cfg, _ := ParseConfig(map[string]interface{}{
		"partner_code": "MOMOTEST",
		"access_key":   "F8BBA842ECF85",
		"secret_key":   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
		"endpoint":     endpoint,
		"ipn_url":      "https://api.example.com/api/v1/payments/momo/ipn",
		"redirect_url": "https://api.example.com/api/v1/payments/momo/return",
	})
	return cfg
}

func signedNotification(cfg *Config, resultCode int) *Notification {
	n := &Notification{
		PartnerCode:  cfg.PartnerCode,
		OrderID:      "TB12260101120000abcd",
		RequestID:    "req-1",
		Amount:       1000000,
		OrderInfo:    "booking 12",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1767268800000,
	}
	n.Signature = SignNotification(cfg, n)
	return n
}

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{"partner_code": " P1 "})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.PartnerCode != "P1" || cfg.Endpoint != defaultEndpoint || cfg.RequestType != "captureWallet" || cfg.Lang != "vi" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := ValidateConfig(cfg); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected missing keys to be invalid, got %v", err)
	}
}

func TestVerifyNotificationRoundTrip(t *testing.T) {
	cfg := testConfig(defaultEndpoint)
	n := signedNotification(cfg, 0)
	if err := VerifyNotification(cfg, n); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !n.IsSuccess() || n.IsPending() {
		t.Fatalf("expected success notification")
	}

	n.Amount = 900000
	if err := VerifyNotification(cfg, n); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected tampered amount to fail verification, got %v", err)
	}
}

func TestNotificationFromQueryMatchesJSON(t *testing.T) {
	cfg := testConfig(defaultEndpoint)
	n := signedNotification(cfg, 1006)

	values := url.Values{}
	values.Set("partnerCode", n.PartnerCode)
	values.Set("orderId", n.OrderID)
	values.Set("requestId", n.RequestID)
	values.Set("amount", strconv.FormatInt(n.Amount, 10))
	values.Set("orderInfo", n.OrderInfo)
	values.Set("orderType", n.OrderType)
	values.Set("transId", strconv.FormatInt(n.TransID, 10))
	values.Set("resultCode", strconv.Itoa(n.ResultCode))
	values.Set("message", n.Message)
	values.Set("payType", n.PayType)
	values.Set("responseTime", strconv.FormatInt(n.ResponseTime, 10))
	values.Set("extraData", "")
	values.Set("signature", n.Signature)

	parsed, err := NotificationFromQuery(values)
	if err != nil {
		t.Fatalf("parse query failed: %v", err)
	}
	if err := VerifyNotification(cfg, parsed); err != nil {
		t.Fatalf("verify query failed: %v", err)
	}
	if parsed.IsSuccess() {
		t.Fatalf("expected failure result code")
	}
}

func TestParseNotificationRejectsMissingSignature(t *testing.T) {
	if _, err := ParseNotification([]byte(`{"orderId":"TB1"}`)); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid, got %v", err)
	}
	if _, err := ParseNotification([]byte(`not-json`)); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("expected payload invalid for malformed body, got %v", err)
	}
}

func TestCreatePaymentSignsRequest(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != createPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{"resultCode":0,"message":"ok","payUrl":"https://pay.momo.vn/x","deeplink":"momo://x"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	result, err := CreatePayment(context.Background(), cfg, CreateInput{
		OrderID:   "TB1260101120000abcd",
		RequestID: "req-1",
		Amount:    1000000,
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if result.PayURL != "https://pay.momo.vn/x" || result.Deeplink != "momo://x" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if received["signature"] == "" || received["ipnUrl"] != cfg.IPNURL || received["requestType"] != "captureWallet" {
		t.Fatalf("unexpected request body: %+v", received)
	}
}

func TestCreatePaymentBusinessError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"resultCode":11,"message":"access denied"}`))
	}))
	defer server.Close()

	_, err := CreatePayment(context.Background(), testConfig(server.URL), CreateInput{
		OrderID:   "TB1",
		RequestID: "req-1",
		Amount:    1000,
	})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got %v", err)
	}
}
