// Package engine implements the funnel state machine that drives each
// lead to its next stage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel/domain"
	"estatefunnel_backend/internal/funnel/repository"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/platform/apperr"
	"estatefunnel_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Follow-up cadence by stage.
const (
	cadenceEarly   = 3 * 24 * time.Hour  // new, contacted
	cadenceMid     = 7 * 24 * time.Hour  // qualified
	cadenceLate    = 14 * 24 * time.Hour // everything else
	maxFollowUps   = 5
	pursueBatchCap = 500
	pursueParallel = 8

	// counterReminderAge is how long an AI counter may sit pending before
	// the lead gets a nudge.
	counterReminderAge = 2 * 24 * time.Hour
)

// Repository defines the data access interface needed by the engine.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	Save(ctx context.Context, lead *domain.Lead) error
	AppendAIAction(ctx context.Context, leadID uuid.UUID, action domain.AIAction) error
	ListDueFollowUps(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
	AggregateByStage(ctx context.Context, createdBy *uuid.UUID) ([]repository.StageAggregate, error)
	GetProperty(ctx context.Context, id uuid.UUID) (repository.Property, error)
}

// Dispatcher sends multi-channel notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, rcpt notify.Recipient, msg notify.Message) notify.Result
}

// ViewingBooker auto-books the next available viewing slot for a lead.
// Implementations own the lead's stage transition to viewing_scheduled.
type ViewingBooker interface {
	AutoBook(ctx context.Context, leadID uuid.UUID) (BookedViewing, error)
}

// BookedViewing describes an auto-booked viewing.
type BookedViewing struct {
	ViewingID uuid.UUID
	StartTime time.Time
	Reasoning string
}

// ViewingLookup reports viewing outcomes back into the funnel.
type ViewingLookup interface {
	HasInterestedCompletedViewing(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// NegotiationInitiator opens automated negotiation on a lead in place.
type NegotiationInitiator interface {
	InitiateForLead(ctx context.Context, lead *domain.Lead, now time.Time) (notify.Result, error)
}

// Service is the funnel state machine.
type Service struct {
	repo        Repository
	dispatcher  Dispatcher
	booker      ViewingBooker
	viewings    ViewingLookup
	negotiation NegotiationInitiator
	eventBus    events.Bus
	log         *logger.Logger
	now         func() time.Time

	handlers map[domain.Stage]stageHandler
}

// stageHandler performs the single automated action for one stage.
// It reports what happened and whether the lead aggregate was mutated
// and needs a versioned save.
type stageHandler func(ctx context.Context, lead *domain.Lead, now time.Time) stageOutcome

type stageOutcome struct {
	Action       string
	Success      bool
	Reasoning    string
	Outcome      string
	NeedsSave    bool
	Notification *notify.Result
}

// New creates the funnel engine and builds the stage dispatch table.
func New(repo Repository, dispatcher Dispatcher, booker ViewingBooker, viewings ViewingLookup, negotiation NegotiationInitiator, eventBus events.Bus, log *logger.Logger) *Service {
	s := &Service{
		repo:        repo,
		dispatcher:  dispatcher,
		booker:      booker,
		viewings:    viewings,
		negotiation: negotiation,
		eventBus:    eventBus,
		log:         log,
		now:         time.Now,
	}

	s.handlers = map[domain.Stage]stageHandler{
		domain.StageNew:         s.handleNew,
		domain.StageContacted:   s.handleContacted,
		domain.StageQualified:   s.handleQualified,
		domain.StageViewed:      s.handleViewed,
		domain.StageNegotiating: s.handleNegotiating,
	}

	return s
}

// SetViewingBooker wires the viewing auto-booker. Set by the composition
// root after both modules exist, which breaks the circular dependency.
func (s *Service) SetViewingBooker(b ViewingBooker) { s.booker = b }

// SetViewingLookup wires the viewing outcome lookup.
func (s *Service) SetViewingLookup(v ViewingLookup) { s.viewings = v }

// AdvanceResult is the always-returned outcome of one Advance call.
type AdvanceResult struct {
	Action       string         `json:"action"`
	Success      bool           `json:"success"`
	Outcome      string         `json:"outcome"`
	StageChanged bool           `json:"stageChanged"`
	Stage        domain.Stage   `json:"stage"`
	Notification *notify.Result `json:"notification,omitempty"`
	Lead         domain.Lead    `json:"-"`
}

// Advance performs exactly one stage-specific action for the lead.
// Delegate failures are recorded in the audit trail with success false,
// never raised. Exactly one audit entry is appended per call, and one
// stage-history entry iff the stage changed.
func (s *Service) Advance(ctx context.Context, leadID uuid.UUID) (AdvanceResult, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AdvanceResult{}, apperr.NotFound("lead not found")
		}
		return AdvanceResult{}, err
	}

	now := s.now()
	fromStage := lead.Stage

	handler, ok := s.handlers[lead.Stage]
	if !ok {
		// Terminal and passive stages get an explicit no-op with an
		// audit entry but no aggregate mutation.
		outcome := stageOutcome{
			Action:  "no_action",
			Success: true,
			Outcome: fmt.Sprintf("no automated action for stage %s", lead.Stage),
		}
		return s.finishWithoutSave(ctx, lead, fromStage, outcome, now)
	}

	outcome := handler(ctx, &lead, now)

	if !outcome.NeedsSave {
		return s.finishWithoutSave(ctx, lead, fromStage, outcome, now)
	}

	lead.RecordAIAction(outcome.Action, outcome.Success, outcome.Reasoning, outcome.Outcome, now)

	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return AdvanceResult{}, apperr.Conflict("lead was modified concurrently, retry")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return AdvanceResult{}, apperr.NotFound("lead not found")
		}
		return AdvanceResult{}, err
	}

	stageChanged := lead.Stage != fromStage
	if stageChanged {
		s.eventBus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			FromStage: string(fromStage),
			ToStage:   string(lead.Stage),
			Automated: true,
			Reason:    outcome.Reasoning,
		})
	}

	s.log.FunnelAction(lead.ID.String(), outcome.Action, outcome.Success, outcome.Outcome)

	return AdvanceResult{
		Action:       outcome.Action,
		Success:      outcome.Success,
		Outcome:      outcome.Outcome,
		StageChanged: stageChanged,
		Stage:        lead.Stage,
		Notification: outcome.Notification,
		Lead:         lead,
	}, nil
}

// finishWithoutSave records the audit entry through the atomic append
// path for actions that did not mutate the aggregate locally. The stage
// may still have moved when the handler delegated the transition, so
// the result compares against the stage the call started from.
func (s *Service) finishWithoutSave(ctx context.Context, lead domain.Lead, fromStage domain.Stage, outcome stageOutcome, now time.Time) (AdvanceResult, error) {
	err := s.repo.AppendAIAction(ctx, lead.ID, domain.AIAction{
		Action:    outcome.Action,
		Timestamp: now,
		Success:   outcome.Success,
		Reasoning: outcome.Reasoning,
		Outcome:   outcome.Outcome,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AdvanceResult{}, apperr.NotFound("lead not found")
		}
		return AdvanceResult{}, err
	}

	stageChanged := lead.Stage != fromStage
	if stageChanged {
		s.eventBus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			FromStage: string(fromStage),
			ToStage:   string(lead.Stage),
			Automated: true,
			Reason:    outcome.Reasoning,
		})
	}

	s.log.FunnelAction(lead.ID.String(), outcome.Action, outcome.Success, outcome.Outcome)

	return AdvanceResult{
		Action:       outcome.Action,
		Success:      outcome.Success,
		Outcome:      outcome.Outcome,
		StageChanged: stageChanged,
		Stage:        lead.Stage,
		Notification: outcome.Notification,
		Lead:         lead,
	}, nil
}

// handleNew sends the initial contact message and moves the lead to
// contacted. The send happens before the save so the audit entry records
// the real delivery outcome; the version check still serializes racing
// mutations.
func (s *Service) handleNew(ctx context.Context, lead *domain.Lead, now time.Time) stageOutcome {
	prop, err := s.repo.GetProperty(ctx, lead.PropertyID)
	if err != nil {
		return stageOutcome{
			Action:    "initial_contact",
			Success:   false,
			Outcome:   fmt.Sprintf("property lookup failed: %v", err),
			NeedsSave: false,
		}
	}

	result := s.dispatcher.Dispatch(ctx, recipient(lead), notify.Message{
		Subject: "Thanks for your interest in " + prop.Title,
		Body: fmt.Sprintf("Hi %s, thank you for your interest in %s (%s). I'm your automated assistant and will guide you through the next steps. Would you like to book a viewing?",
			lead.ClientName, prop.Title, prop.Location),
	})

	outcomeText := "initial contact sent via " + result.Channel
	if !result.Delivered {
		outcomeText = "initial contact could not be delivered on any channel"
	}

	lead.ChangeStage(domain.StageContacted, domain.ActorAI, "automated initial contact", now)

	return stageOutcome{
		Action:       "initial_contact",
		Success:      result.Delivered,
		Reasoning:    "new lead greeting",
		Outcome:      outcomeText,
		NeedsSave:    true,
		Notification: &result,
	}
}

// handleContacted qualifies the lead on score or schedules a follow-up.
func (s *Service) handleContacted(_ context.Context, lead *domain.Lead, now time.Time) stageOutcome {
	if lead.Score >= domain.QualificationScoreThreshold {
		lead.ChangeStage(domain.StageQualified, domain.ActorAI,
			fmt.Sprintf("score %d meets qualification threshold", lead.Score), now)
		return stageOutcome{
			Action:    "qualify",
			Success:   true,
			Reasoning: fmt.Sprintf("score %d >= %d", lead.Score, domain.QualificationScoreThreshold),
			Outcome:   "lead qualified",
			NeedsSave: true,
		}
	}

	next := now.Add(cadenceEarly)
	lead.NextFollowUpDate = &next
	return stageOutcome{
		Action:    "schedule_follow_up",
		Success:   true,
		Reasoning: fmt.Sprintf("score %d below qualification threshold", lead.Score),
		Outcome:   "follow-up scheduled in 3 days",
		NeedsSave: true,
	}
}

// handleQualified auto-books a viewing for hot leads. The booker owns the
// lead's transition, so this handler never saves the stale aggregate.
func (s *Service) handleQualified(ctx context.Context, lead *domain.Lead, _ time.Time) stageOutcome {
	if !lead.BuyingIntent.IsHot() {
		return stageOutcome{
			Action:    "no_action",
			Success:   true,
			Reasoning: fmt.Sprintf("buying intent %s does not warrant auto-booking", lead.BuyingIntent),
			Outcome:   "waiting for stronger intent",
		}
	}

	if s.booker == nil {
		return stageOutcome{
			Action:  "auto_book_viewing",
			Success: false,
			Outcome: "viewing auto-booking is not configured",
		}
	}

	booked, err := s.booker.AutoBook(ctx, lead.ID)
	if err != nil {
		return stageOutcome{
			Action:  "auto_book_viewing",
			Success: false,
			Outcome: fmt.Sprintf("auto-booking failed: %v", err),
		}
	}

	lead.Stage = domain.StageViewingScheduled
	return stageOutcome{
		Action:    "auto_book_viewing",
		Success:   true,
		Reasoning: booked.Reasoning,
		Outcome:   "viewing booked for " + booked.StartTime.Format(time.RFC3339),
	}
}

// handleViewed opens negotiation when a completed, interested viewing
// exists; otherwise logs a waiting no-op.
func (s *Service) handleViewed(ctx context.Context, lead *domain.Lead, now time.Time) stageOutcome {
	if s.viewings == nil {
		return stageOutcome{
			Action:  "initiate_negotiation",
			Success: false,
			Outcome: "viewing lookup is not configured",
		}
	}

	interested, err := s.viewings.HasInterestedCompletedViewing(ctx, lead.ID)
	if err != nil {
		return stageOutcome{
			Action:  "initiate_negotiation",
			Success: false,
			Outcome: fmt.Sprintf("viewing lookup failed: %v", err),
		}
	}
	if !interested {
		return stageOutcome{
			Action:    "no_action",
			Success:   true,
			Reasoning: "no completed viewing with an interested outcome",
			Outcome:   "waiting for viewing feedback",
		}
	}

	result, err := s.negotiation.InitiateForLead(ctx, lead, now)
	if err != nil {
		return stageOutcome{
			Action:  "initiate_negotiation",
			Success: false,
			Outcome: fmt.Sprintf("negotiation initiation failed: %v", err),
		}
	}

	outcomeText := "negotiation opened, invitation sent via " + result.Channel
	if !result.Delivered {
		outcomeText = "negotiation opened, invitation could not be delivered"
	}

	return stageOutcome{
		Action:       "initiate_negotiation",
		Success:      result.Delivered,
		Reasoning:    "completed viewing with interested outcome",
		Outcome:      outcomeText,
		NeedsSave:    true,
		Notification: &result,
	}
}

// handleNegotiating nudges the lead when an AI counter has sat pending
// for two days or more.
func (s *Service) handleNegotiating(ctx context.Context, lead *domain.Lead, now time.Time) stageOutcome {
	latest := lead.Negotiation.LatestCounterOffer()
	if latest == nil || latest.OfferedBy != domain.ActorAI || latest.Status != domain.OfferPending ||
		now.Sub(latest.OfferedAt) < counterReminderAge {
		return stageOutcome{
			Action:    "no_action",
			Success:   true,
			Reasoning: "no stale pending counter offer",
			Outcome:   "negotiation in progress",
		}
	}

	result := s.dispatcher.Dispatch(ctx, recipient(lead), notify.Message{
		Subject: "Our counter offer is waiting for you",
		Body: fmt.Sprintf("Hi %s, just checking in. Our counter offer of KES %d is still on the table. Let us know what you think!",
			lead.ClientName, latest.AmountCents/100),
	})

	outcomeText := "counter offer reminder sent via " + result.Channel
	if !result.Delivered {
		outcomeText = "counter offer reminder could not be delivered"
	}

	return stageOutcome{
		Action:       "counter_offer_reminder",
		Success:      result.Delivered,
		Reasoning:    "AI counter pending for two days or more",
		Outcome:      outcomeText,
		Notification: &result,
	}
}

func recipient(lead *domain.Lead) notify.Recipient {
	return notify.Recipient{Name: lead.ClientName, Phone: lead.ClientPhone, Email: lead.ClientEmail}
}

// PursueResult summarizes one batch run.
type PursueResult struct {
	Scanned      int `json:"scanned"`
	FollowedUp   int `json:"followedUp"`
	Disqualified int `json:"disqualified"`
	Failed       int `json:"failed"`
}

// PursueStalled batch-processes leads whose follow-up is due. Leads run
// in parallel with per-lead error isolation; one lead's failure never
// aborts the batch.
func (s *Service) PursueStalled(ctx context.Context, now time.Time) (PursueResult, error) {
	leads, err := s.repo.ListDueFollowUps(ctx, now, pursueBatchCap)
	if err != nil {
		return PursueResult{}, err
	}

	var (
		mu     sync.Mutex
		result = PursueResult{Scanned: len(leads)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pursueParallel)

	for _, lead := range leads {
		g.Go(func() error {
			disqualified, err := s.pursueLead(gctx, lead, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				s.log.Warn("follow-up failed", "leadId", lead.ID, "error", err)
			case disqualified:
				result.Disqualified++
			default:
				result.FollowedUp++
			}
			return nil
		})
	}

	_ = g.Wait()
	return result, nil
}

func (s *Service) pursueLead(ctx context.Context, lead domain.Lead, now time.Time) (disqualified bool, err error) {
	if lead.Stage.IsTerminal() {
		return false, nil
	}

	sendResult := s.dispatcher.Dispatch(ctx, recipient(&lead), notify.Message{
		Subject: "Still interested?",
		Body: fmt.Sprintf("Hi %s, just following up on your property enquiry. We're here whenever you're ready for the next step.",
			lead.ClientName),
	})

	lead.FollowUpCount++
	ts := now
	lead.LastFollowUpDate = &ts

	if lead.FollowUpCount >= maxFollowUps && lead.Stage == domain.StageContacted {
		lead.ChangeStage(domain.StageDisqualified, domain.ActorAI, "no response after repeated follow-ups", now)
		lead.CloseLost(domain.StageDisqualified, domain.ActorAI, "unresponsive", now)
		lead.AutoFollowUpEnabled = false
		lead.NextFollowUpDate = nil
		disqualified = true
	} else {
		next := now.Add(followUpCadence(lead.Stage))
		lead.NextFollowUpDate = &next
	}

	lead.RecordAIAction("follow_up", sendResult.Delivered,
		fmt.Sprintf("automated follow-up %d", lead.FollowUpCount),
		followUpOutcome(sendResult, disqualified), now)

	if err := s.repo.Save(ctx, &lead); err != nil {
		return false, err
	}

	if disqualified {
		s.eventBus.Publish(ctx, events.LeadDisqualified{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Reason:    "unresponsive",
		})
	}

	return disqualified, nil
}

// ReengageAfterCancelledViewing returns a lead to the qualified stage
// when its booked viewing is called off, so the next sweep can book a
// replacement. Leads in any other stage are left alone.
func (s *Service) ReengageAfterCancelledViewing(ctx context.Context, leadID uuid.UUID, reason string) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	if lead.Stage != domain.StageViewingScheduled {
		return nil
	}

	now := s.now()
	note := "viewing cancelled"
	if reason != "" {
		note = "viewing cancelled: " + reason
	}

	lead.ChangeStage(domain.StageQualified, domain.ActorSystem, note, now)
	lead.AutoFollowUpEnabled = true
	next := now.Add(cadenceEarly)
	lead.NextFollowUpDate = &next

	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperr.Conflict("lead was modified concurrently, retry")
		}
		return err
	}

	s.eventBus.Publish(ctx, events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		FromStage: string(domain.StageViewingScheduled),
		ToStage:   string(domain.StageQualified),
		Automated: true,
		Reason:    note,
	})

	return nil
}

func followUpCadence(stage domain.Stage) time.Duration {
	switch stage {
	case domain.StageNew, domain.StageContacted:
		return cadenceEarly
	case domain.StageQualified:
		return cadenceMid
	default:
		return cadenceLate
	}
}

func followUpOutcome(result notify.Result, disqualified bool) string {
	if disqualified {
		return "lead disqualified as unresponsive"
	}
	if result.Delivered {
		return "follow-up sent via " + result.Channel
	}
	return "follow-up could not be delivered"
}

// CloseDealRequest is the manual operator override input.
type CloseDealRequest struct {
	Outcome         domain.Stage
	FinalPriceCents int64
	Reason          string
	ClosedBy        string
}

// CloseDeal is the manual escape hatch that bypasses automated
// decisioning. It refuses to touch leads that are already terminal.
func (s *Service) CloseDeal(ctx context.Context, leadID uuid.UUID, req CloseDealRequest) (domain.Lead, error) {
	if !req.Outcome.IsTerminal() {
		return domain.Lead{}, apperr.Validation("close outcome must be won, lost or disqualified")
	}
	if req.Outcome == domain.StageWon && req.FinalPriceCents <= 0 {
		return domain.Lead{}, apperr.Validation("a final price is required to close a deal as won")
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

	now := s.now()
	closedBy := req.ClosedBy
	if closedBy == "" {
		closedBy = domain.ActorManual
	}

	lead.ChangeStage(req.Outcome, domain.ActorManual, req.Reason, now)
	if req.Outcome == domain.StageWon {
		var listPrice int64
		if prop, err := s.repo.GetProperty(ctx, lead.PropertyID); err == nil {
			listPrice = prop.ListPriceCents
		}
		lead.CloseWon(req.FinalPriceCents, listPrice, closedBy, now)
	} else {
		lead.CloseLost(req.Outcome, closedBy, req.Reason, now)
	}
	lead.Negotiation.IsActive = false
	lead.AutoFollowUpEnabled = false
	lead.NextFollowUpDate = nil

	if err := s.repo.Save(ctx, &lead); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Lead{}, apperr.Conflict("lead was modified concurrently, retry")
		}
		return domain.Lead{}, err
	}

	s.eventBus.Publish(ctx, events.DealClosed{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		Won:             req.Outcome == domain.StageWon,
		RevenueCents:    closureRevenue(lead.DealClosure),
		CommissionCents: closureCommission(lead.DealClosure),
		Reason:          req.Reason,
	})

	return lead, nil
}

func closureRevenue(c *domain.DealClosure) int64 {
	if c == nil {
		return 0
	}
	return c.RevenueCents
}

func closureCommission(c *domain.DealClosure) int64 {
	if c == nil {
		return 0
	}
	return c.CommissionCents
}

// PipelineStats is the stage-grouped funnel overview.
type PipelineStats struct {
	ByStage           map[domain.Stage]int `json:"byStage"`
	Total             int                  `json:"total"`
	Active            int                  `json:"active"`
	Won               int                  `json:"won"`
	TotalRevenueCents int64                `json:"totalRevenueCents"`
	ConversionRate    float64              `json:"conversionRate"`
	AverageDealCents  int64                `json:"averageDealCents"`
}

// Pipeline aggregates leads by stage with computed metrics, optionally
// scoped to one owning user.
func (s *Service) Pipeline(ctx context.Context, createdBy *uuid.UUID) (PipelineStats, error) {
	aggregates, err := s.repo.AggregateByStage(ctx, createdBy)
	if err != nil {
		return PipelineStats{}, err
	}

	stats := PipelineStats{ByStage: make(map[domain.Stage]int)}
	for _, agg := range aggregates {
		stats.ByStage[agg.Stage] = agg.Count
		stats.Total += agg.Count
		if !agg.Stage.IsTerminal() {
			stats.Active += agg.Count
		}
		if agg.Stage == domain.StageWon {
			stats.Won += agg.Count
			stats.TotalRevenueCents += agg.RevenueCents
		}
	}

	if stats.Total > 0 {
		stats.ConversionRate = float64(stats.Won) / float64(stats.Total) * 100
	}
	if stats.Won > 0 {
		stats.AverageDealCents = stats.TotalRevenueCents / int64(stats.Won)
	}

	return stats, nil
}
