package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"estatefunnel_backend/internal/adapters"
	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/email"
	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/internal/scheduler"
	"estatefunnel_backend/internal/sms"
	"estatefunnel_backend/internal/viewings"
	"estatefunnel_backend/internal/whatsapp"
	"estatefunnel_backend/platform/ai/gemini"
	"estatefunnel_backend/platform/config"
	"estatefunnel_backend/platform/db"
	"estatefunnel_backend/platform/logger"
	"estatefunnel_backend/platform/validator"
)

// The scheduler binary runs the asynq worker that executes the periodic
// funnel follow-up and viewing reminder sweeps. It shares the module
// wiring with cmd/api but exposes no HTTP surface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log.Logger)
	val := validator.New()

	var chat notify.TextSender
	if cfg.IsWhatsAppEnabled() {
		chat = whatsapp.NewClient(cfg, log)
	}
	var textMsg notify.TextSender
	if cfg.IsSMSEnabled() {
		textMsg = sms.NewClient(cfg, log)
	}
	var mail email.Sender
	if cfg.IsEmailEnabled() {
		mail = email.NewSMTPSender(cfg)
	}
	dispatcher := notify.NewDispatcher(chat, textMsg, mail, log)

	var adv advisor.Advisor
	if cfg.IsAdvisorEnabled() {
		geminiClient, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GetGeminiAPIKey(),
			Model:   cfg.GetGeminiModel(),
			Timeout: cfg.GetAdvisorTimeout(),
		})
		if err != nil {
			log.Error("failed to initialize gemini client", "error", err)
			panic("failed to initialize gemini client: " + err.Error())
		}
		adv = advisor.NewGeminiAdvisor(geminiClient, log)
	}

	funnelModule := funnel.NewModule(pool, eventBus, dispatcher, adv, val, log)

	leadGateway := adapters.NewLeadGatewayAdapter(funnelModule.Repository())
	viewingsModule := viewings.NewModule(pool, leadGateway, eventBus, dispatcher, adv, val, log)

	funnelModule.SetViewingBooker(adapters.NewViewingBookerAdapter(viewingsModule.Service()))
	funnelModule.SetViewingLookup(adapters.NewViewingLookupAdapter(viewingsModule.Repository()))
	funnelModule.RegisterHandlers(eventBus)

	if err := scheduler.CheckBroker(ctx, cfg); err != nil {
		log.Error("broker check failed", "error", err)
		panic("broker check failed: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, funnelModule.Engine(), viewingsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("scheduler worker listening", "redis", cfg.GetRedisAddr(), "concurrency", cfg.GetWorkerConcurrency())
	worker.Run(ctx)
	log.Info("scheduler worker stopped")
}
