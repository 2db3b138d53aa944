// Package adapters provides anti-corruption-layer adapters that let
// bounded contexts collaborate through their own port interfaces.
package adapters

import (
	"context"

	"estatefunnel_backend/internal/funnel/engine"
	viewingsrepo "estatefunnel_backend/internal/viewings/repository"
	viewingssvc "estatefunnel_backend/internal/viewings/service"

	"github.com/google/uuid"
)

// ViewingBookerAdapter adapts the viewings service for the funnel engine.
// It implements the engine.ViewingBooker interface.
type ViewingBookerAdapter struct {
	svc *viewingssvc.Service
}

// NewViewingBookerAdapter creates a new adapter wrapping the viewings service.
func NewViewingBookerAdapter(svc *viewingssvc.Service) *ViewingBookerAdapter {
	return &ViewingBookerAdapter{svc: svc}
}

// AutoBook books the recommended slot for a hot lead.
func (a *ViewingBookerAdapter) AutoBook(ctx context.Context, leadID uuid.UUID) (engine.BookedViewing, error) {
	result, err := a.svc.AutoBook(ctx, leadID)
	if err != nil {
		return engine.BookedViewing{}, err
	}
	return engine.BookedViewing{
		ViewingID: result.Viewing.ID,
		StartTime: result.Viewing.ScheduledAt,
		Reasoning: result.Reasoning,
	}, nil
}

// ViewingLookupAdapter exposes viewing outcomes to the funnel engine.
// It implements the engine.ViewingLookup interface.
type ViewingLookupAdapter struct {
	repo *viewingsrepo.Repository
}

// NewViewingLookupAdapter creates a new adapter wrapping the viewings repository.
func NewViewingLookupAdapter(repo *viewingsrepo.Repository) *ViewingLookupAdapter {
	return &ViewingLookupAdapter{repo: repo}
}

// HasInterestedCompletedViewing reports whether the lead completed a
// viewing with an interested outcome.
func (a *ViewingLookupAdapter) HasInterestedCompletedViewing(ctx context.Context, leadID uuid.UUID) (bool, error) {
	return a.repo.HasInterestedCompleted(ctx, leadID)
}
