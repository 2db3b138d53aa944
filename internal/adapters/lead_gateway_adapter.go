package adapters

import (
	"context"
	"fmt"
	"time"

	"estatefunnel_backend/internal/funnel/domain"
	funnelrepo "estatefunnel_backend/internal/funnel/repository"
	viewingssvc "estatefunnel_backend/internal/viewings/service"

	"github.com/google/uuid"
)

// LeadGatewayAdapter exposes funnel leads to the viewings context.
// It implements the viewings service.LeadGateway interface.
type LeadGatewayAdapter struct {
	repo *funnelrepo.Repository
}

// NewLeadGatewayAdapter creates a new adapter wrapping the funnel repository.
func NewLeadGatewayAdapter(repo *funnelrepo.Repository) *LeadGatewayAdapter {
	return &LeadGatewayAdapter{repo: repo}
}

// Contact returns the contact slice of a lead.
func (a *LeadGatewayAdapter) Contact(ctx context.Context, leadID uuid.UUID) (viewingssvc.LeadContact, error) {
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		return viewingssvc.LeadContact{}, err
	}
	return viewingssvc.LeadContact{
		Name:          lead.ClientName,
		Phone:         lead.ClientPhone,
		Email:         lead.ClientEmail,
		PropertyID:    lead.PropertyID,
		Score:         lead.Score,
		BuyingIntent:  string(lead.BuyingIntent),
		FollowUpCount: lead.FollowUpCount,
	}, nil
}

// OnViewingScheduled moves the lead to viewing_scheduled after a booking.
// Auto-booked transitions record the reasoning in the history entry; the
// audit trail itself is written by the caller that initiated the booking.
func (a *LeadGatewayAdapter) OnViewingScheduled(ctx context.Context, leadID uuid.UUID, when time.Time, auto bool, reasoning string) error {
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	actor := domain.ActorManual
	notes := fmt.Sprintf("viewing scheduled for %s", when.Format(time.RFC3339))
	if auto {
		actor = domain.ActorAI
		if reasoning != "" {
			notes = reasoning
		}
	}

	if !lead.ChangeStage(domain.StageViewingScheduled, actor, notes, time.Now().UTC()) {
		return nil
	}
	return a.repo.Save(ctx, &lead)
}

// OnViewingCompleted advances the lead based on the viewing outcome. A
// lead ready to negotiate goes straight to negotiating, everyone else
// lands in viewed for a later interest check.
func (a *LeadGatewayAdapter) OnViewingCompleted(ctx context.Context, leadID uuid.UUID, readyToNegotiate bool) error {
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	target := domain.StageViewed
	notes := "viewing completed"
	if readyToNegotiate {
		target = domain.StageNegotiating
		notes = "viewing completed, buyer ready to negotiate"
	}

	if !lead.ChangeStage(target, domain.ActorSystem, notes, time.Now().UTC()) {
		return nil
	}
	return a.repo.Save(ctx, &lead)
}
