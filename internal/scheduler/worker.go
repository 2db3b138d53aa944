package scheduler

import (
	"context"
	"fmt"
	"time"

	"estatefunnel_backend/internal/funnel/engine"
	viewingssvc "estatefunnel_backend/internal/viewings/service"
	"estatefunnel_backend/platform/config"
	"estatefunnel_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	engine   *engine.Service
	viewings *viewingssvc.Service
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng *engine.Service, viewings *viewingssvc.Service, log *logger.Logger) (*Worker, error) {
	if cfg.GetRedisAddr() == "" {
		return nil, fmt.Errorf("redis address not configured")
	}

	concurrency := cfg.GetWorkerConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		engine:   eng,
		viewings: viewings,
		log:      log,
	}

	mux.HandleFunc(TaskPursueStalledLeads, w.handlePursueStalled)
	mux.HandleFunc(TaskSendViewingReminders, w.handleSendReminders)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handlePursueStalled(ctx context.Context, task *asynq.Task) error {
	if _, err := ParsePursueStalledPayload(task); err != nil {
		return err
	}

	result, err := w.engine.PursueStalled(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	w.log.Info("follow-up sweep finished",
		"scanned", result.Scanned,
		"followedUp", result.FollowedUp,
		"disqualified", result.Disqualified,
		"failed", result.Failed)
	return nil
}

func (w *Worker) handleSendReminders(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseSendRemindersPayload(task); err != nil {
		return err
	}

	result, err := w.viewings.SendReminders(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	w.log.Info("reminder sweep finished",
		"scanned", result.Scanned,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return nil
}
