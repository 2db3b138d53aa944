package scheduler

import (
	"context"
	"fmt"
	"time"

	"estatefunnel_backend/platform/config"
	"estatefunnel_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	if cfg.GetRedisAddr() == "" {
		return nil, fmt.Errorf("redis address not configured")
	}

	return &Client{
		client: asynq.NewClient(redisClientOpt(cfg)),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePursueStalled queues one follow-up sweep of the funnel.
func (c *Client) EnqueuePursueStalled(ctx context.Context, requestedAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewPursueStalledTask(PursueStalledPayload{RequestedAt: requestedAt})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
	return err
}

// EnqueueSendReminders queues one viewing reminder sweep.
func (c *Client) EnqueueSendReminders(ctx context.Context, requestedAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSendRemindersTask(SendRemindersPayload{RequestedAt: requestedAt})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
	return err
}

// RunPeriodic enqueues sweep tasks on the configured intervals until the
// context is cancelled. It is meant to run in its own goroutine next to
// the worker.
func (c *Client) RunPeriodic(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) {
	pursueEvery := cfg.GetPursueInterval()
	if pursueEvery <= 0 {
		pursueEvery = time.Hour
	}
	remindEvery := cfg.GetReminderInterval()
	if remindEvery <= 0 {
		remindEvery = 30 * time.Minute
	}

	pursueTicker := time.NewTicker(pursueEvery)
	remindTicker := time.NewTicker(remindEvery)
	defer pursueTicker.Stop()
	defer remindTicker.Stop()

	log.Info("periodic scheduler started", "pursueInterval", pursueEvery.String(), "reminderInterval", remindEvery.String())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-pursueTicker.C:
			if err := c.EnqueuePursueStalled(ctx, now); err != nil {
				log.Error("failed to enqueue follow-up sweep", "error", err)
			}
		case now := <-remindTicker.C:
			if err := c.EnqueueSendReminders(ctx, now); err != nil {
				log.Error("failed to enqueue reminder sweep", "error", err)
			}
		}
	}
}

func redisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}

// CheckBroker pings the Redis broker so misconfiguration surfaces at
// startup instead of on the first enqueue.
func CheckBroker(ctx context.Context, cfg config.RedisConfig) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis broker unreachable at %s: %w", cfg.GetRedisAddr(), err)
	}
	return nil
}
