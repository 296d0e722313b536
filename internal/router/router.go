package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tourbook-next/internal/authz"
	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/constants"
	adminhandlers "github.com/tourbook-next/internal/http/handlers/admin"
	publichandlers "github.com/tourbook-next/internal/http/handlers/public"
	"github.com/tourbook-next/internal/http/response"
	"github.com/tourbook-next/internal/http/validation"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/provider"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if err := validation.Register(); err != nil {
		logger.Errorw("router_register_validators_failed", "error", err)
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tb"
	}
	redisClient := cache.Client()
	checkoutLimit := RateLimitMiddleware(redisClient,
		NewRateLimitRule(fmt.Sprintf("%s:rate:checkout", redisPrefix), cfg.Security.CheckoutRateLimit), KeyByUser)
	requestLimit := RateLimitMiddleware(redisClient,
		NewRateLimitRule(fmt.Sprintf("%s:rate:request", redisPrefix), cfg.Security.RequestRateLimit), KeyByUser)

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 网关回调（以签名鉴权）
		payments := apiV1.Group("/payments")
		{
			payments.POST("/momo/ipn", publicHandler.MomoIPN)
			payments.GET("/momo/return", publicHandler.MomoReturn)
			payments.GET("/vnpay/ipn", publicHandler.VnpayIPN)
			payments.GET("/vnpay/return", publicHandler.VnpayReturn)
		}

		// 顾客与导游接口
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT))
		{
			customer := user.Group("", RequireUserRole(constants.RoleCustomer))
			customer.POST("/bookings/:id/checkout", checkoutLimit, publicHandler.CreateCheckout)
			customer.GET("/bookings/:id/payment", publicHandler.GetBookingPayment)
			customer.POST("/refunds", requestLimit, publicHandler.CreateRefund)

			guide := user.Group("/guide", RequireUserRole(constants.RoleGuide))
			guide.POST("/payouts", requestLimit, publicHandler.CreatePayout)
			guide.GET("/payouts", publicHandler.ListMyPayouts)
			guide.GET("/payouts/balance", publicHandler.GetPayoutBalance)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT), AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/payment-settings", adminHandler.ListPaymentSettings)
			admin.PUT("/payment-settings/:gateway", adminHandler.UpsertPaymentSetting)

			admin.GET("/payment-transactions", adminHandler.ListPaymentTransactions)
			admin.POST("/payment-transactions/:id/void", adminHandler.VoidPaymentTransaction)
			admin.GET("/payment-anomalies", adminHandler.ListPaymentAnomalies)
			admin.POST("/payment-anomalies/:id/resolve", adminHandler.ResolvePaymentAnomaly)

			admin.GET("/refunds", adminHandler.ListRefunds)
			admin.POST("/refunds/:id/confirm", adminHandler.ConfirmRefund)
			admin.POST("/refunds/:id/reject", adminHandler.RejectRefund)

			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.POST("/payouts/:id/approve", adminHandler.ApprovePayout)
			admin.POST("/payouts/:id/reject", adminHandler.RejectPayout)
			admin.POST("/payouts/:id/mark-paid", adminHandler.MarkPayoutPaid)

			admin.GET("/revenue/tours", adminHandler.ListToursRevenue)
			admin.GET("/revenue/tours/:id", adminHandler.GetTourRevenue)

			admin.GET("/audit-logs", adminHandler.ListOperatorAuditLogs)

			// 权限管理（默认仅超级管理员）
			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
			admin.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
			admin.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
			admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	r.GET("/health", healthCheck)
	return r
}

// healthCheck 数据库不可用时返回 503；Redis 未启用不影响健康状态
func healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
	code := http.StatusOK
	if models.DB == nil {
		status["status"], status["database"] = "degraded", "uninitialized"
		code = http.StatusServiceUnavailable
	} else if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["status"], status["database"] = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}
	if cache.Enabled() {
		status["redis"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			status["redis"] = "unreachable"
		}
	}
	c.JSON(code, status)
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))
	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})
	return items
}

// deriveAdminPermissionModule /admin/refunds/:id/confirm -> refunds
func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
