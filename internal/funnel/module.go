// Package funnel provides the lead sales funnel bounded context module.
// This file defines the module that encapsulates all funnel setup and
// route registration.
package funnel

import (
	"context"

	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel/engine"
	"estatefunnel_backend/internal/funnel/handler"
	"estatefunnel_backend/internal/funnel/negotiation"
	"estatefunnel_backend/internal/funnel/repository"
	apphttp "estatefunnel_backend/internal/http"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/platform/logger"
	"estatefunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the funnel bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	engine      *engine.Service
	negotiation *negotiation.Service
	repo        *repository.Repository
}

// NewModule creates and initializes the funnel module with all its
// dependencies. The advisor may be nil when no API key is configured.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, dispatcher *notify.Dispatcher, adv advisor.Advisor, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	negotiationSvc := negotiation.New(repo, adv, dispatcher, eventBus, log)
	engineSvc := engine.New(repo, dispatcher, nil, nil, negotiationSvc, eventBus, log)

	h := handler.New(engineSvc, negotiationSvc, val)

	return &Module{
		handler:     h,
		engine:      engineSvc,
		negotiation: negotiationSvc,
		repo:        repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// Engine returns the funnel state machine for external use (scheduler).
func (m *Module) Engine() *engine.Service {
	return m.engine
}

// NegotiationService returns the negotiation engine for external use.
func (m *Module) NegotiationService() *negotiation.Service {
	return m.negotiation
}

// Repository returns the funnel repository for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// SetViewingBooker wires the viewings auto-booker adapter
// (breaks the circular dependency with the viewings module).
func (m *Module) SetViewingBooker(b engine.ViewingBooker) {
	m.engine.SetViewingBooker(b)
}

// SetViewingLookup wires the viewings outcome lookup adapter.
func (m *Module) SetViewingLookup(v engine.ViewingLookup) {
	m.engine.SetViewingLookup(v)
}

// RegisterHandlers subscribes the funnel to viewing lifecycle events on
// the event bus. A cancelled viewing sends the lead back to qualified so
// the engine can book a replacement.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ViewingCancelled{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		cancelled, ok := e.(events.ViewingCancelled)
		if !ok {
			return nil
		}
		return m.engine.ReengageAfterCancelledViewing(ctx, cancelled.LeadID, cancelled.Reason)
	}))
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All funnel routes require authentication
	funnelGroup := ctx.Protected.Group("/funnel")
	m.handler.RegisterRoutes(funnelGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
