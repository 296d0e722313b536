package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndGatewayEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MOMO_PARTNER_CODE", "ENVPARTNER")
	t.Setenv("VNPAY_HASH_SECRET", "env-hash-secret")

	cfg := Load()
	if cfg.Server.Port != "9090" {
		t.Fatalf("server port want 9090 got %s", cfg.Server.Port)
	}
	if cfg.Payment.Momo.PartnerCode != "ENVPARTNER" || cfg.Payment.Vnpay.HashSecret != "env-hash-secret" {
		t.Fatalf("gateway env bindings not applied: %+v", cfg.Payment)
	}
	if cfg.Payment.Momo.Endpoint != "https://test-payment.momo.vn" {
		t.Fatalf("momo endpoint default missing: %s", cfg.Payment.Momo.Endpoint)
	}
	if cfg.Payment.ConfigCacheTTLSeconds != 60 || cfg.Payment.CheckoutExpireMinutes != 15 {
		t.Fatalf("payment defaults mismatch: %+v", cfg.Payment)
	}
	if cfg.Security.CheckoutRateLimit.WindowSeconds != 60 || cfg.Security.CheckoutRateLimit.MaxRequests != 10 {
		t.Fatalf("checkout rate limit defaults mismatch: %+v", cfg.Security.CheckoutRateLimit)
	}
	if cfg.Security.RequestRateLimit.WindowSeconds != 300 || cfg.Security.RequestRateLimit.MaxRequests != 5 {
		t.Fatalf("request rate limit defaults mismatch: %+v", cfg.Security.RequestRateLimit)
	}
	if cfg.JWT.Issuer != "tourbook-auth" || cfg.UserJWT.SecretKey == "" {
		t.Fatalf("jwt defaults mismatch: %+v %+v", cfg.JWT, cfg.UserJWT)
	}
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "TB_DOTENV_EXISTING=from-file\nTB_DOTENV_NEW=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file failed: %v", err)
	}
	t.Setenv("TB_DOTENV_EXISTING", "from-process")
	t.Setenv("TB_DOTENV_NEW", "")
	os.Unsetenv("TB_DOTENV_NEW")

	loadDotEnv(path)
	defer os.Unsetenv("TB_DOTENV_NEW")

	if got := os.Getenv("TB_DOTENV_EXISTING"); got != "from-process" {
		t.Fatalf("existing variable overwritten: %s", got)
	}
	if got := os.Getenv("TB_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("new variable not loaded: %s", got)
	}
}

func TestEnvConfigToMap(t *testing.T) {
	momo := MomoEnvConfig{PartnerCode: "P", SecretKey: "S"}.ToMap()
	if momo["partner_code"] != "P" || momo["secret_key"] != "S" || momo["access_key"] != "" {
		t.Fatalf("unexpected momo map: %+v", momo)
	}
	vnpay := VnpayEnvConfig{TmnCode: "T", HashSecret: "H"}.ToMap()
	if vnpay["tmn_code"] != "T" || vnpay["hash_secret"] != "H" {
		t.Fatalf("unexpected vnpay map: %+v", vnpay)
	}
}
