// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"estatefunnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Funnel Domain Events
// =============================================================================

// LeadStageChanged is published when a lead transitions between funnel stages.
type LeadStageChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	FromStage string    `json:"fromStage"`
	ToStage   string    `json:"toStage"`
	Automated bool      `json:"automated"`
	Reason    string    `json:"reason,omitempty"`
}

func (e LeadStageChanged) EventName() string { return "funnel.lead.stage_changed" }

// LeadDisqualified is published when the funnel drops a lead.
type LeadDisqualified struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadDisqualified) EventName() string { return "funnel.lead.disqualified" }

// NegotiationInitiated is published when automated negotiation starts for a lead.
type NegotiationInitiated struct {
	BaseEvent
	LeadID             uuid.UUID `json:"leadId"`
	PropertyID         uuid.UUID `json:"propertyId"`
	AskingPriceCents   int64     `json:"askingPriceCents"`
	MinAcceptableCents int64     `json:"minAcceptableCents"`
}

func (e NegotiationInitiated) EventName() string { return "funnel.negotiation.initiated" }

// OfferEvaluated is published after a buyer offer has been run through the
// negotiation ladder.
type OfferEvaluated struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	OfferCents   int64     `json:"offerCents"`
	Decision     string    `json:"decision"`
	CounterCents int64     `json:"counterCents,omitempty"`
	AIAssisted   bool      `json:"aiAssisted"`
}

func (e OfferEvaluated) EventName() string { return "funnel.offer.evaluated" }

// DealClosed is published when a lead reaches a terminal won or lost stage.
type DealClosed struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	Won             bool      `json:"won"`
	RevenueCents    int64     `json:"revenueCents,omitempty"`
	CommissionCents int64     `json:"commissionCents,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

func (e DealClosed) EventName() string { return "funnel.deal.closed" }

// =============================================================================
// Viewing Domain Events
// =============================================================================

// ViewingScheduled is published when a property viewing is booked.
type ViewingScheduled struct {
	BaseEvent
	ViewingID  uuid.UUID `json:"viewingId"`
	LeadID     uuid.UUID `json:"leadId"`
	PropertyID uuid.UUID `json:"propertyId"`
	AgentID    uuid.UUID `json:"agentId"`
	StartTime  time.Time `json:"startTime"`
	AutoBooked bool      `json:"autoBooked"`
}

func (e ViewingScheduled) EventName() string { return "viewings.scheduled" }

// ViewingConfirmed is published when a party confirms attendance.
type ViewingConfirmed struct {
	BaseEvent
	ViewingID      uuid.UUID `json:"viewingId"`
	LeadID         uuid.UUID `json:"leadId"`
	Party          string    `json:"party"`
	FullyConfirmed bool      `json:"fullyConfirmed"`
}

func (e ViewingConfirmed) EventName() string { return "viewings.confirmed" }

// ViewingCompleted is published when a viewing outcome has been recorded.
type ViewingCompleted struct {
	BaseEvent
	ViewingID        uuid.UUID `json:"viewingId"`
	LeadID           uuid.UUID `json:"leadId"`
	Interested       bool      `json:"interested"`
	ReadyToNegotiate bool      `json:"readyToNegotiate"`
	FeedbackRating   int       `json:"feedbackRating,omitempty"`
}

func (e ViewingCompleted) EventName() string { return "viewings.completed" }

// ViewingCancelled is published when a viewing is called off.
type ViewingCancelled struct {
	BaseEvent
	ViewingID uuid.UUID `json:"viewingId"`
	LeadID    uuid.UUID `json:"leadId"`
	Reason    string    `json:"reason,omitempty"`
}

func (e ViewingCancelled) EventName() string { return "viewings.cancelled" }

// ViewingRescheduled is published when a viewing moves to a new slot.
type ViewingRescheduled struct {
	BaseEvent
	ViewingID    uuid.UUID `json:"viewingId"`
	LeadID       uuid.UUID `json:"leadId"`
	PreviousTime time.Time `json:"previousTime"`
	NewTime      time.Time `json:"newTime"`
}

func (e ViewingRescheduled) EventName() string { return "viewings.rescheduled" }
