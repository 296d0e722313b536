package app

import (
	"errors"
	"net"
	"time"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/logger"
	"github.com/tourbook-next/internal/provider"
	"github.com/tourbook-next/internal/router"
	"github.com/tourbook-next/internal/worker"
)

// BuildRunner 按启动模式组装 HTTP 与队列消费服务
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !validMode(mode) {
		return nil, errors.New("unknown mode: " + mode)
	}

	container := provider.NewContainer(cfg)

	var services []Service
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(listenAddr(cfg), engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		// all 模式下未启用队列时副作用投递为空操作，仅提供 API
		if !cfg.Queue.Enabled && mode == ModeAll {
			logger.Warnw("app_worker_skipped", "reason", "queue disabled")
		} else {
			workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container),
				time.Duration(cfg.Payment.StaleCheckScanSeconds)*time.Second)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	opts.Logger.Infow("app_start", "addr", listenAddr(opts.Config), "mode", opts.Mode, "queue_enabled", opts.Config.Queue.Enabled)
	return RunWithOptions(runner, opts)
}

func listenAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
}

func validMode(mode string) bool {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return true
	}
	return false
}
