package worker

import (
	"context"
	"errors"
	"time"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步任务消费服务，附带过期支付会话巡检
type Service struct {
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	staleInterval time.Duration
}

// NewService 创建消费服务；staleInterval <= 0 时不巡检
func NewService(cfg *config.QueueConfig, consumer *Consumer, staleInterval time.Duration) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		server:        asynq.NewServer(opt, serverCfg),
		mux:           mux,
		consumer:      consumer,
		staleInterval: staleInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动消费并阻塞到 ctx 结束；信号由上层运行器统一处理
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if s.staleInterval > 0 {
		go s.runStaleCheckoutLoop(ctx)
	}
	<-ctx.Done()
	return nil
}

// Stop 等待进行中的任务结束
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

func (s *Service) runStaleCheckoutLoop(ctx context.Context) {
	ticker := time.NewTicker(s.staleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.consumer.ReportStaleCheckouts(now.UTC()); err != nil {
				logger.Warnw("worker_stale_checkout_scan_failed", "error", err)
			}
		}
	}
}
