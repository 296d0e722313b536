package provider

import (
	"github.com/tourbook-next/internal/authz"
	"github.com/tourbook-next/internal/cache"
	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/models"
	"github.com/tourbook-next/internal/queue"
	"github.com/tourbook-next/internal/repository"
	"github.com/tourbook-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	TourRepo           repository.TourRepository
	BookingRepo        repository.BookingRepository
	PaymentSettingRepo repository.PaymentSettingRepository
	TransactionRepo    repository.PaymentTransactionRepository
	PaymentAuditRepo   repository.PaymentAuditRepository
	RefundRepo         repository.RefundRepository
	PayoutRepo         repository.PayoutRepository
	RevenueRepo        repository.RevenueRepository
	NotificationRepo   repository.NotificationRepository
	OperatorAuditRepo  repository.OperatorAuditRepository

	// Services
	AuthzService          *authz.Service
	GatewayConfigService  *service.GatewayConfigService
	CheckoutService       *service.CheckoutService
	ReconcileService      *service.PaymentReconcileService
	BookingPaymentService *service.BookingPaymentService
	RefundService         *service.RefundService
	PayoutService         *service.PayoutService
	RevenueService        *service.RevenueService
	AuditService          *service.OperatorAuditService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.TourRepo = repository.NewTourRepository(db)
	c.BookingRepo = repository.NewBookingRepository(db)
	c.PaymentSettingRepo = repository.NewPaymentSettingRepository(db)
	c.TransactionRepo = repository.NewPaymentTransactionRepository(db)
	c.PaymentAuditRepo = repository.NewPaymentAuditRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.RevenueRepo = repository.NewRevenueRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.OperatorAuditRepo = repository.NewOperatorAuditRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	gatewayConfigs, err := service.NewGatewayConfigService(c.PaymentSettingRepo, c.Config.Payment)
	if err != nil {
		logger.Errorw("provider_init_gateway_config_failed", "error", err)
		panic(err)
	}
	c.GatewayConfigService = gatewayConfigs

	// 队列未启用时副作用投递为空操作
	var events service.PaymentEventPublisher
	if c.QueueClient != nil {
		events = c.QueueClient
	}

	c.CheckoutService = service.NewCheckoutService(c.BookingRepo, c.TransactionRepo, c.GatewayConfigService, c.Config.Payment.CheckoutExpireMinutes)
	c.ReconcileService = service.NewPaymentReconcileService(c.TransactionRepo, c.BookingRepo, c.PaymentAuditRepo, c.GatewayConfigService, events)
	c.BookingPaymentService = service.NewBookingPaymentService(c.BookingRepo, c.TransactionRepo, c.RefundRepo)
	c.PayoutService = service.NewPayoutService(c.PayoutRepo, c.RevenueRepo, events)
	c.RefundService = service.NewRefundService(c.RefundRepo, c.TransactionRepo, c.BookingRepo, c.PaymentAuditRepo, c.PayoutService, events)
	c.RevenueService = service.NewRevenueService(c.RevenueRepo, c.TourRepo, c.Config.Revenue.CacheTTLSeconds)
	c.AuditService = service.NewOperatorAuditService(c.OperatorAuditRepo)
}
