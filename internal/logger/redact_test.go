package logger

import "testing"

func TestRedactMasksSecretsAndKeepsOriginal(t *testing.T) {
	payload := map[string]interface{}{
		"orderId":   "TB1",
		"signature": "abc",
		"accessKey": "F8BBA842ECF85",
		"extra":     map[string]interface{}{"secret_key": "x", "lang": "vi"},
	}
	out := Redact(payload)
	if out["orderId"] != "TB1" {
		t.Fatalf("orderId should be kept, got %v", out["orderId"])
	}
	if out["signature"] != redactedValue || out["accessKey"] != redactedValue {
		t.Fatalf("secret fields should be masked: %v", out)
	}
	nested := out["extra"].(map[string]interface{})
	if nested["secret_key"] != redactedValue || nested["lang"] != "vi" {
		t.Fatalf("nested masking failed: %v", nested)
	}
	if payload["signature"] != "abc" {
		t.Fatalf("source payload must not be modified")
	}
}

func TestRedactValuesMasksVnpayHash(t *testing.T) {
	out := RedactValues(map[string][]string{
		"vnp_TxnRef":     {"TB1"},
		"vnp_SecureHash": {"deadbeef"},
	})
	if out["vnp_TxnRef"] != "TB1" {
		t.Fatalf("vnp_TxnRef should be kept, got %v", out["vnp_TxnRef"])
	}
	if out["vnp_SecureHash"] != redactedValue {
		t.Fatalf("vnp_SecureHash should be masked, got %v", out["vnp_SecureHash"])
	}
}
