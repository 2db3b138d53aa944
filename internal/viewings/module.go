// Package viewings provides the property viewing bounded context module.
package viewings

import (
	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/events"
	apphttp "estatefunnel_backend/internal/http"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/internal/viewings/handler"
	"estatefunnel_backend/internal/viewings/repository"
	"estatefunnel_backend/internal/viewings/service"
	"estatefunnel_backend/platform/logger"
	"estatefunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the viewings bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the viewings module. The lead gateway
// adapter crosses into the funnel context and is provided by the
// composition root. The advisor may be nil.
func NewModule(pool *pgxpool.Pool, leads service.LeadGateway, eventBus events.Bus, dispatcher *notify.Dispatcher, adv advisor.Advisor, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, adv, dispatcher, eventBus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "viewings"
}

// Service returns the viewing scheduler for external use (adapters,
// scheduler jobs).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the viewings repository for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts viewing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All viewing routes require authentication
	viewingsGroup := ctx.Protected.Group("/viewings")
	m.handler.RegisterRoutes(viewingsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
