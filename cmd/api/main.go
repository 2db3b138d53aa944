package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbmigrations "estatefunnel_backend/db"
	"estatefunnel_backend/internal/adapters"
	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/email"
	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel"
	apphttp "estatefunnel_backend/internal/http"
	"estatefunnel_backend/internal/http/router"
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

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, dbmigrations.Migrations)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log.Logger)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Notification Channels
	// ========================================================================

	// Disabled channels stay nil so the dispatcher falls through to the
	// next channel in the chain.
	var chat notify.TextSender
	if cfg.IsWhatsAppEnabled() {
		chat = whatsapp.NewClient(cfg, log)
		log.Info("whatsapp channel enabled")
	}

	var textMsg notify.TextSender
	if cfg.IsSMSEnabled() {
		textMsg = sms.NewClient(cfg, log)
		log.Info("sms channel enabled")
	}

	var mail email.Sender
	if cfg.IsEmailEnabled() {
		mail = email.NewSMTPSender(cfg)
		log.Info("email channel enabled", "host", cfg.GetSMTPHost())
	}

	dispatcher := notify.NewDispatcher(chat, textMsg, mail, log)

	// ========================================================================
	// AI Decision Advisor
	// ========================================================================

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
		log.Info("ai advisor enabled", "model", cfg.GetGeminiModel())
	} else {
		log.Warn("GEMINI_API_KEY not configured; running with heuristic decisions only")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	funnelModule := funnel.NewModule(pool, eventBus, dispatcher, adv, val, log)

	// The viewings module reads leads through the gateway adapter
	leadGateway := adapters.NewLeadGatewayAdapter(funnelModule.Repository())
	viewingsModule := viewings.NewModule(pool, leadGateway, eventBus, dispatcher, adv, val, log)

	// Set viewing booker on funnel module (breaks circular dependency)
	funnelModule.SetViewingBooker(adapters.NewViewingBookerAdapter(viewingsModule.Service()))
	funnelModule.SetViewingLookup(adapters.NewViewingLookupAdapter(viewingsModule.Repository()))

	// Cross-module event subscriptions
	funnelModule.RegisterHandlers(eventBus)

	// ========================================================================
	// Background Scheduler
	// ========================================================================

	closeScheduler := initScheduler(ctx, cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			funnelModule,
			viewingsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initScheduler starts the periodic sweep enqueuer when Redis is
// configured. The worker itself runs in cmd/scheduler.
func initScheduler(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) func() {
	if cfg.GetRedisAddr() == "" {
		log.Warn("REDIS_ADDR not configured; background sweeps disabled")
		return nil
	}

	if err := scheduler.CheckBroker(ctx, cfg); err != nil {
		log.Warn("broker check failed; background sweeps disabled", "error", err)
		return nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil
	}

	go client.RunPeriodic(ctx, cfg, log)

	return func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
