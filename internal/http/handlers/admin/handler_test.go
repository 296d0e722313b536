package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/provider"
	"github.com/tourbook-next/internal/repository"
	"github.com/tourbook-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type adminEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newAdminTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:admin_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	paymentCfg := config.PaymentConfig{PublicBaseURL: "https://api.example.com"}
	c := &provider.Container{
		Config:             &config.Config{Payment: paymentCfg},
		PaymentSettingRepo: repository.NewPaymentSettingRepository(db),
		OperatorAuditRepo:  repository.NewOperatorAuditRepository(db),
	}
	configs, err := service.NewGatewayConfigService(c.PaymentSettingRepo, paymentCfg)
	if err != nil {
		t.Fatalf("new gateway config service failed: %v", err)
	}
	c.GatewayConfigService = configs
	c.AuditService = service.NewOperatorAuditService(c.OperatorAuditRepo)

	h := New(c)
	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set("admin_id", uint(9))
		ctx.Set("request_id", "req-admin-test")
		ctx.Next()
	})
	r.PUT("/admin/payment-settings/:gateway", h.UpsertPaymentSetting)
	r.GET("/admin/audit-logs", h.ListOperatorAuditLogs)
	r.POST("/admin/refunds/:id/reject", h.RejectRefund)
	r.GET("/admin/revenue/tours", h.ListToursRevenue)
	return r, db
}

func serveAdmin(t *testing.T, r *gin.Engine, method, target string, body interface{}) adminEnvelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env adminEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response failed: %v (%s)", err, w.Body.String())
	}
	return env
}

func TestUpsertPaymentSettingMasksSecretsAndAudits(t *testing.T) {
	r, _ := newAdminTestRouter(t)

	env := serveAdmin(t, r, http.MethodPut, "/admin/payment-settings/momo", gin.H{
		"is_active": true,
		"config": gin.H{
			"partner_code": "MOMODB01",
			"access_key":   "F8BBA842ECF85",
			"secret_key":   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
			"endpoint":     "https://test-payment.momo.vn",
		},
	})
	if env.StatusCode != 0 {
		t.Fatalf("upsert failed: %+v", env)
	}
	if strings.Contains(string(env.Data), "K951B6PE1waDMi640xX08PD3vg6EkVlz") {
		t.Fatalf("secret leaked in response: %s", env.Data)
	}

	env = serveAdmin(t, r, http.MethodGet, "/admin/audit-logs?action="+service.AuditActionSettingUpsert, nil)
	if env.StatusCode != 0 {
		t.Fatalf("list audit logs failed: %+v", env)
	}
	var logs []models.OperatorAuditLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatalf("unmarshal audit logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.OperatorAdminID != 9 || entry.TargetKey != "momo" || entry.RequestID != "req-admin-test" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if raw, _ := json.Marshal(entry.DetailJSON); strings.Contains(string(raw), "K951B6PE") {
		t.Fatalf("secret leaked in audit detail: %s", raw)
	}
}

func TestUpsertPaymentSettingRejectsIncompleteActiveConfig(t *testing.T) {
	r, db := newAdminTestRouter(t)

	env := serveAdmin(t, r, http.MethodPut, "/admin/payment-settings/vnpay", gin.H{
		"is_active": true,
		"config":    gin.H{"tmn_code": "TBTEST01"},
	})
	if env.StatusCode != 400 {
		t.Fatalf("incomplete config want 400 got %+v", env)
	}
	var count int64
	db.Model(&models.OperatorAuditLog{}).Count(&count)
	if count != 0 {
		t.Fatalf("failed upsert must not be audited, got %d", count)
	}
}

func TestRejectRefundRequiresReason(t *testing.T) {
	r, _ := newAdminTestRouter(t)
	if env := serveAdmin(t, r, http.MethodPost, "/admin/refunds/1/reject", gin.H{}); env.StatusCode != 400 {
		t.Fatalf("reject without reason want 400 got %+v", env)
	}
	if env := serveAdmin(t, r, http.MethodPost, "/admin/refunds/abc/reject", gin.H{"reason": "duplicate"}); env.StatusCode != 400 {
		t.Fatalf("bad id want 400 got %+v", env)
	}
}

func TestListToursRevenueRejectsBadDate(t *testing.T) {
	r, _ := newAdminTestRouter(t)
	env := serveAdmin(t, r, http.MethodGet, "/admin/revenue/tours?from=2026-13-40", nil)
	if env.StatusCode != 400 {
		t.Fatalf("bad date want 400 got %+v", env)
	}
}
