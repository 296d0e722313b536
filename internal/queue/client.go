package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tourbook-next/internal/config"
	"github.com/tourbook-next/internal/constants"

	"github.com/hibiken/asynq"
)

// Client 队列客户端封装
type Client struct {
	client  *asynq.Client
	enabled bool
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false}, nil
	}
	return &Client{
		client:  asynq.NewClient(buildRedisOpt(cfg)),
		enabled: true,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueBookingPaid 推送支付成功回执任务
func (c *Client) EnqueueBookingPaid(ctx context.Context, payload BookingPaidPayload) error {
	task, err := NewBookingPaidTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, constants.QueueCritical)
}

// EnqueueBookingRefunded 推送退款确认回执任务
func (c *Client) EnqueueBookingRefunded(ctx context.Context, payload BookingRefundedPayload) error {
	task, err := NewBookingRefundedTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, constants.QueueDefault)
}

// EnqueuePayoutStatusChanged 推送提现状态变更任务
func (c *Client) EnqueuePayoutStatusChanged(ctx context.Context, payload PayoutStatusChangedPayload) error {
	task, err := NewPayoutStatusChangedTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, constants.QueueLow)
}

// enqueue 重复任务 ID 视为已投递
func (c *Client) enqueue(ctx context.Context, task *asynq.Task, queueName string) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(queueName))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{
		constants.QueueCritical: 6,
		constants.QueueDefault:  3,
		constants.QueueLow:      1,
	}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
