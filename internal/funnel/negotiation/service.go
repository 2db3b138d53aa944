// Package negotiation evaluates buyer offers against per-lead rules with
// an AI-assisted strategy fallback.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel/domain"
	"estatefunnel_backend/internal/funnel/repository"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/platform/apperr"
	"estatefunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the negotiation
// engine. This is a consumer-driven interface.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	Save(ctx context.Context, lead *domain.Lead) error
	GetProperty(ctx context.Context, id uuid.UUID) (repository.Property, error)
	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
}

// Dispatcher sends multi-channel notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, rcpt notify.Recipient, msg notify.Message) notify.Result
}

// Service is the negotiation engine.
type Service struct {
	repo       Repository
	advisor    advisor.Advisor
	dispatcher Dispatcher
	eventBus   events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates the negotiation engine. The advisor may be nil, in which
// case the deterministic fallback is always used.
func New(repo Repository, adv advisor.Advisor, dispatcher Dispatcher, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		advisor:    adv,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		log:        log,
		now:        time.Now,
	}
}

// Decision describes the outcome of one offer evaluation.
type Decision struct {
	Action       domain.CounterOfferStatus `json:"action"`
	CounterCents int64                     `json:"counterCents,omitempty"`
	Reasoning    string                    `json:"reasoning"`
	AIAssisted   bool                      `json:"aiAssisted"`
	Notification notify.Result             `json:"notification"`
	Lead         domain.Lead               `json:"-"`
}

// HandleOffer runs a buyer offer through the deterministic ladder:
// at or above the auto-accept threshold it is accepted, below the minimum
// acceptable price it is rejected, and everything in between is delegated
// to the advisor with a midpoint-counter fallback.
func (s *Service) HandleOffer(ctx context.Context, leadID uuid.UUID, offerCents int64, message string) (Decision, error) {
	if offerCents <= 0 {
		return Decision{}, apperr.Validation("offer amount must be positive")
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Decision{}, apperr.NotFound("lead not found")
		}
		return Decision{}, err
	}

	if lead.Stage.IsTerminal() {
		return Decision{}, apperr.Conflict("lead is already closed")
	}
	if !lead.Negotiation.IsActive {
		return Decision{}, apperr.Validation("negotiation is not active for this lead")
	}

	prop, err := s.repo.GetProperty(ctx, lead.PropertyID)
	if err != nil {
		if errors.Is(err, repository.ErrPropertyNotFound) {
			return Decision{}, apperr.NotFound("property not found")
		}
		return Decision{}, err
	}

	now := s.now()

	if lead.Negotiation.Rules == nil {
		rules := domain.DefaultNegotiationRules(prop.ListPriceCents)
		lead.Negotiation.Rules = &rules
	}
	rules := *lead.Negotiation.Rules

	// The incoming offer is always appended; its status is updated in
	// place once the decision is known.
	lead.Negotiation.CounterOffers = append(lead.Negotiation.CounterOffers, domain.CounterOffer{
		AmountCents: offerCents,
		OfferedBy:   domain.ActorLead,
		OfferedAt:   now,
		Reasoning:   message,
		Status:      domain.OfferPending,
	})
	incoming := &lead.Negotiation.CounterOffers[len(lead.Negotiation.CounterOffers)-1]
	if lead.Negotiation.InitialOfferCents == 0 {
		lead.Negotiation.InitialOfferCents = offerCents
	}
	lead.Negotiation.CurrentOfferCents = offerCents

	decision := s.decide(ctx, &lead, prop, rules, offerCents)

	switch decision.Action {
	case domain.OfferAccepted:
		incoming.Status = domain.OfferAccepted
		lead.ChangeStage(domain.StageWon, domain.ActorAI, "offer accepted", now)
		lead.CloseWon(offerCents, prop.ListPriceCents, domain.ActorAI, now)
		lead.Negotiation.IsActive = false
	case domain.OfferCountered:
		incoming.Status = domain.OfferCountered
		lead.Negotiation.CounterOffers = append(lead.Negotiation.CounterOffers, domain.CounterOffer{
			AmountCents: decision.CounterCents,
			OfferedBy:   domain.ActorAI,
			OfferedAt:   now,
			Reasoning:   decision.Reasoning,
			Status:      domain.OfferPending,
		})
		lead.Negotiation.CurrentOfferCents = decision.CounterCents
	case domain.OfferRejected:
		incoming.Status = domain.OfferRejected
	}

	lead.RecordAIAction("offer_evaluated", true, decision.Reasoning,
		fmt.Sprintf("offer of %d cents %s", offerCents, decision.Action), now)

	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return Decision{}, apperr.Conflict("lead was modified concurrently, retry the offer")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return Decision{}, apperr.NotFound("lead not found")
		}
		return Decision{}, err
	}

	// Notifications go out after the decision has been persisted. A failed
	// send is reported in the result, never rolled back.
	decision.Notification = s.notifyDecision(ctx, lead, prop, decision)
	decision.Lead = lead

	s.eventBus.Publish(ctx, events.OfferEvaluated{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		OfferCents:   offerCents,
		Decision:     string(decision.Action),
		CounterCents: decision.CounterCents,
		AIAssisted:   decision.AIAssisted,
	})
	if decision.Action == domain.OfferAccepted {
		s.eventBus.Publish(ctx, events.DealClosed{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          lead.ID,
			Won:             true,
			RevenueCents:    lead.DealClosure.RevenueCents,
			CommissionCents: lead.DealClosure.CommissionCents,
		})
	}

	return decision, nil
}

// decide applies the evaluation ladder. Steps 1 and 2 are deterministic
// regardless of advisor availability.
func (s *Service) decide(ctx context.Context, lead *domain.Lead, prop repository.Property, rules domain.NegotiationRules, offerCents int64) Decision {
	if offerCents >= rules.AutoAcceptCents {
		return Decision{
			Action:    domain.OfferAccepted,
			Reasoning: "offer meets the auto-accept threshold",
		}
	}
	if offerCents < rules.MinAcceptableCents {
		return Decision{
			Action:    domain.OfferRejected,
			Reasoning: "offer is below the minimum acceptable price",
		}
	}

	if s.advisor != nil && lead.Negotiation.AIEnabled {
		advice, err := s.advisor.SuggestOffer(ctx, advisor.OfferContext{
			ListPriceCents:     prop.ListPriceCents,
			OfferCents:         offerCents,
			OfferPercentOfList: float64(offerCents) / float64(prop.ListPriceCents) * 100,
			LeadScore:          lead.Score,
			BuyingIntent:       string(lead.BuyingIntent),
			DaysAsLead:         lead.DaysAsLead(s.now()),
			PriorOfferCount:    len(lead.Negotiation.CounterOffers) - 1,
			MinAcceptableCents: rules.MinAcceptableCents,
			AutoAcceptCents:    rules.AutoAcceptCents,
			MaxDiscountPercent: rules.MaxDiscountPercent,
		})
		if err == nil {
			return Decision{
				Action:       domain.CounterOfferStatus(advice.Action),
				CounterCents: advice.CounterCents,
				Reasoning:    advice.Reasoning,
				AIAssisted:   true,
			}
		}
		s.log.Warn("advisor unavailable, using midpoint fallback", "leadId", lead.ID, "error", err)
	}

	return Decision{
		Action:       domain.OfferCountered,
		CounterCents: midpoint(offerCents, prop.ListPriceCents),
		Reasoning:    "countered at the midpoint between the offer and the list price",
	}
}

func midpoint(a, b int64) int64 {
	return domain.RoundCents(float64(a+b) / 2)
}

func (s *Service) notifyDecision(ctx context.Context, lead domain.Lead, prop repository.Property, decision Decision) notify.Result {
	leadRcpt := notify.Recipient{Name: lead.ClientName, Phone: lead.ClientPhone, Email: lead.ClientEmail}

	switch decision.Action {
	case domain.OfferAccepted:
		owner, err := s.repo.GetUser(ctx, prop.OwnerID)
		if err != nil {
			s.log.Warn("cannot notify property owner", "leadId", lead.ID, "error", err)
			return notify.Result{}
		}
		return s.dispatcher.Dispatch(ctx, notify.Recipient{Name: owner.Name, Phone: owner.Phone, Email: owner.Email}, notify.Message{
			Subject: "Offer accepted on " + prop.Title,
			Body: fmt.Sprintf("Great news! The offer of KES %d on %s has been accepted. Our team will contact you to finalize the paperwork.",
				lead.DealClosure.FinalPriceCents/100, prop.Title),
		})
	case domain.OfferCountered:
		return s.dispatcher.Dispatch(ctx, leadRcpt, notify.Message{
			Subject: "Counter offer for " + prop.Title,
			Body: fmt.Sprintf("Thank you for your offer on %s. We would like to propose KES %d instead. %s",
				prop.Title, decision.CounterCents/100, decision.Reasoning),
		})
	default:
		return s.dispatcher.Dispatch(ctx, leadRcpt, notify.Message{
			Subject: "About your offer for " + prop.Title,
			Body: fmt.Sprintf("Thank you for your offer on %s. Unfortunately we cannot accept it. %s",
				prop.Title, decision.Reasoning),
		})
	}
}

// InitiateForLead activates automated negotiation on a lead that just
// completed an interested viewing. It mutates the lead in place; the
// caller owns persistence and the audit entry.
func (s *Service) InitiateForLead(ctx context.Context, lead *domain.Lead, now time.Time) (notify.Result, error) {
	prop, err := s.repo.GetProperty(ctx, lead.PropertyID)
	if err != nil {
		return notify.Result{}, err
	}

	lead.Negotiation.IsActive = true
	lead.Negotiation.AIEnabled = true
	if lead.Negotiation.Rules == nil {
		rules := domain.DefaultNegotiationRules(prop.ListPriceCents)
		lead.Negotiation.Rules = &rules
	}
	lead.ChangeStage(domain.StageNegotiating, domain.ActorAI, "interested after viewing, negotiation opened", now)

	result := s.dispatcher.Dispatch(ctx, notify.Recipient{Name: lead.ClientName, Phone: lead.ClientPhone, Email: lead.ClientEmail}, notify.Message{
		Subject: "Let's talk numbers for " + prop.Title,
		Body: fmt.Sprintf("Hi %s, glad you liked %s! The asking price is KES %d. Reply with your offer and we can start negotiating right away.",
			lead.ClientName, prop.Title, prop.ListPriceCents/100),
	})

	s.eventBus.Publish(ctx, events.NegotiationInitiated{
		BaseEvent:          events.NewBaseEvent(),
		LeadID:             lead.ID,
		PropertyID:         lead.PropertyID,
		AskingPriceCents:   prop.ListPriceCents,
		MinAcceptableCents: lead.Negotiation.Rules.MinAcceptableCents,
	})

	return result, nil
}

// SetRules replaces the negotiation thresholds for a lead.
func (s *Service) SetRules(ctx context.Context, leadID uuid.UUID, rules domain.NegotiationRules) (domain.Lead, error) {
	if rules.MinAcceptableCents <= 0 || rules.AutoAcceptCents <= 0 {
		return domain.Lead{}, apperr.Validation("negotiation thresholds must be positive")
	}
	if rules.MinAcceptableCents > rules.AutoAcceptCents {
		return domain.Lead{}, apperr.Validation("minimum acceptable price cannot exceed the auto-accept threshold")
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found")
		}
		return domain.Lead{}, err
	}
	if lead.Stage.IsTerminal() {
		return domain.Lead{}, apperr.Conflict("lead is already closed")
	}

	lead.Negotiation.Rules = &rules
	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Lead{}, apperr.Conflict("lead was modified concurrently, retry")
		}
		return domain.Lead{}, err
	}
	return lead, nil
}

// ToggleAI enables or disables AI-authored counter offers for a lead.
func (s *Service) ToggleAI(ctx context.Context, leadID uuid.UUID, enabled bool) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found")
		}
		return domain.Lead{}, err
	}
	if lead.Stage.IsTerminal() {
		return domain.Lead{}, apperr.Conflict("lead is already closed")
	}

	lead.Negotiation.AIEnabled = enabled
	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Lead{}, apperr.Conflict("lead was modified concurrently, retry")
		}
		return domain.Lead{}, err
	}
	return lead, nil
}
