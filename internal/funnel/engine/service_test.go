package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/funnel/domain"
	"estatefunnel_backend/internal/funnel/repository"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/platform/apperr"
	"estatefunnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]domain.Lead
	properties map[uuid.UUID]repository.Property
	due        []domain.Lead
	aggregates []repository.StageAggregate
	appended   []domain.AIAction
	saveErr    error
	saveCalls  int
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeRepo) Save(_ context.Context, lead *domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	lead.Version++
	f.leads[lead.ID] = *lead
	return nil
}

func (f *fakeRepo) AppendAIAction(_ context.Context, leadID uuid.UUID, action domain.AIAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leads[leadID]; !ok {
		return repository.ErrNotFound
	}
	f.appended = append(f.appended, action)
	return nil
}

func (f *fakeRepo) ListDueFollowUps(_ context.Context, _ time.Time, _ int) ([]domain.Lead, error) {
	return f.due, nil
}

func (f *fakeRepo) AggregateByStage(_ context.Context, _ *uuid.UUID) ([]repository.StageAggregate, error) {
	return f.aggregates, nil
}

func (f *fakeRepo) GetProperty(_ context.Context, id uuid.UUID) (repository.Property, error) {
	p, ok := f.properties[id]
	if !ok {
		return repository.Property{}, repository.ErrPropertyNotFound
	}
	return p, nil
}

type fakeDispatcher struct {
	mu        sync.Mutex
	sent      []notify.Message
	delivered bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ notify.Recipient, msg notify.Message) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if !f.delivered {
		return notify.Result{Attempted: []string{notify.ChannelWhatsApp, notify.ChannelSMS, notify.ChannelEmail}}
	}
	return notify.Result{Attempted: []string{notify.ChannelWhatsApp}, Channel: notify.ChannelWhatsApp, Delivered: true}
}

type fakeBooker struct {
	booked BookedViewing
	err    error
	calls  int
}

func (f *fakeBooker) AutoBook(_ context.Context, _ uuid.UUID) (BookedViewing, error) {
	f.calls++
	return f.booked, f.err
}

type fakeLookup struct {
	interested bool
	err        error
}

func (f *fakeLookup) HasInterestedCompletedViewing(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.interested, f.err
}

type fakeInitiator struct {
	calls       int
	err         error
	undelivered bool
}

func (f *fakeInitiator) InitiateForLead(_ context.Context, lead *domain.Lead, now time.Time) (notify.Result, error) {
	f.calls++
	if f.err != nil {
		return notify.Result{}, f.err
	}
	lead.Negotiation.IsActive = true
	lead.Negotiation.AIEnabled = true
	lead.ChangeStage(domain.StageNegotiating, domain.ActorAI, "negotiation opened", now)
	if f.undelivered {
		return notify.Result{Attempted: []string{notify.ChannelWhatsApp, notify.ChannelSMS, notify.ChannelEmail}}, nil
	}
	return notify.Result{Attempted: []string{notify.ChannelWhatsApp}, Channel: notify.ChannelWhatsApp, Delivered: true}, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

type fixture struct {
	svc        *Service
	repo       *fakeRepo
	dispatcher *fakeDispatcher
	booker     *fakeBooker
	lookup     *fakeLookup
	initiator  *fakeInitiator
	leadID     uuid.UUID
	propID     uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T, mutate func(*domain.Lead)) *fixture {
	t.Helper()

	leadID := uuid.New()
	propID := uuid.New()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	lead := domain.Lead{
		ID:          leadID,
		PropertyID:  propID,
		ClientName:  "Amina",
		ClientPhone: "+254712345678",
		Stage:       domain.StageNew,
		Score:       75,
		CreatedAt:   now.Add(-48 * time.Hour),
	}
	if mutate != nil {
		mutate(&lead)
	}

	repo := &fakeRepo{
		leads: map[uuid.UUID]domain.Lead{leadID: lead},
		properties: map[uuid.UUID]repository.Property{
			propID: {ID: propID, Title: "Kilimani 3BR", Location: "Nairobi", ListPriceCents: 1_000_000_000},
		},
	}

	f := &fixture{
		repo:       repo,
		dispatcher: &fakeDispatcher{delivered: true},
		booker:     &fakeBooker{booked: BookedViewing{ViewingID: uuid.New(), StartTime: now.Add(24 * time.Hour)}},
		lookup:     &fakeLookup{},
		initiator:  &fakeInitiator{},
		leadID:     leadID,
		propID:     propID,
		now:        now,
	}
	f.svc = New(repo, f.dispatcher, f.booker, f.lookup, f.initiator, nopBus{}, logger.New("development"))
	f.svc.now = func() time.Time { return now }
	return f
}

func TestAdvanceNewLeadSendsInitialContact(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "initial_contact" || !result.Success {
		t.Errorf("result = %+v, want successful initial_contact", result)
	}
	if !result.StageChanged || result.Stage != domain.StageContacted {
		t.Errorf("Stage = %q (changed=%v), want contacted", result.Stage, result.StageChanged)
	}
	if len(f.dispatcher.sent) != 1 {
		t.Errorf("messages sent = %d, want 1", len(f.dispatcher.sent))
	}

	lead := f.repo.leads[f.leadID]
	if lead.AIEngagement.TotalInteractions != 1 {
		t.Errorf("TotalInteractions = %d, want 1", lead.AIEngagement.TotalInteractions)
	}
	if len(lead.StageHistory) != 1 || lead.StageHistory[0].Stage != domain.StageContacted {
		t.Errorf("StageHistory = %+v, want one entry to contacted", lead.StageHistory)
	}
	if len(f.repo.appended) != 0 {
		t.Errorf("atomic appends = %d, want 0 (audit travels with the save)", len(f.repo.appended))
	}
}

func TestAdvanceNewLeadRecordsDeliveryFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatcher.delivered = false

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Error("undelivered contact must be recorded as failure")
	}
	// The stage still advances; delivery failure is audited, not raised.
	if f.repo.leads[f.leadID].Stage != domain.StageContacted {
		t.Errorf("Stage = %q, want contacted", f.repo.leads[f.leadID].Stage)
	}
}

func TestAdvanceContactedQualifiesOnScore(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageContacted
		l.Score = 65
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "qualify" || result.Stage != domain.StageQualified {
		t.Errorf("result = %+v, want qualify to qualified", result)
	}
}

func TestAdvanceContactedSchedulesFollowUpBelowThreshold(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageContacted
		l.Score = 40
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "schedule_follow_up" || result.StageChanged {
		t.Errorf("result = %+v, want schedule_follow_up without stage change", result)
	}

	lead := f.repo.leads[f.leadID]
	wantNext := f.now.Add(3 * 24 * time.Hour)
	if lead.NextFollowUpDate == nil || !lead.NextFollowUpDate.Equal(wantNext) {
		t.Errorf("NextFollowUpDate = %v, want %v", lead.NextFollowUpDate, wantNext)
	}
}

func TestAdvanceQualifiedHotLeadAutoBooks(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageQualified
		l.BuyingIntent = domain.IntentHigh
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "auto_book_viewing" || !result.Success {
		t.Errorf("result = %+v, want successful auto_book_viewing", result)
	}
	// The booker moved the lead, so the result must report the change.
	if !result.StageChanged || result.Stage != domain.StageViewingScheduled {
		t.Errorf("Stage = %q (changed=%v), want viewing_scheduled", result.Stage, result.StageChanged)
	}
	if f.booker.calls != 1 {
		t.Errorf("booker calls = %d, want 1", f.booker.calls)
	}
	// The booker owns the transition, so the engine must not save its
	// stale copy of the lead.
	if f.repo.saveCalls != 0 {
		t.Errorf("saveCalls = %d, want 0", f.repo.saveCalls)
	}
	if len(f.repo.appended) != 1 || f.repo.appended[0].Action != "auto_book_viewing" {
		t.Errorf("appended = %+v, want one auto_book_viewing audit entry", f.repo.appended)
	}
}

func TestAdvanceQualifiedColdLeadWaits(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageQualified
		l.BuyingIntent = domain.IntentMedium
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "no_action" {
		t.Errorf("Action = %q, want no_action", result.Action)
	}
	if f.booker.calls != 0 {
		t.Errorf("booker calls = %d, want 0", f.booker.calls)
	}
}

func TestAdvanceViewedOpensNegotiationWhenInterested(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageViewed
	})
	f.lookup.interested = true

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "initiate_negotiation" || !result.Success {
		t.Errorf("result = %+v, want successful initiate_negotiation", result)
	}
	if !result.StageChanged || result.Stage != domain.StageNegotiating {
		t.Errorf("Stage = %q (changed=%v), want negotiating", result.Stage, result.StageChanged)
	}
	if f.initiator.calls != 1 {
		t.Errorf("initiator calls = %d, want 1", f.initiator.calls)
	}
	if f.repo.leads[f.leadID].AIEngagement.TotalInteractions != 1 {
		t.Error("audit entry missing from saved lead")
	}
}

func TestAdvanceViewedRecordsInvitationDeliveryFailure(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageViewed
	})
	f.lookup.interested = true
	f.initiator.undelivered = true

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Error("undelivered invitation must be recorded as failure")
	}
	// Negotiation is open regardless; only the delivery failed.
	if !result.StageChanged || f.repo.leads[f.leadID].Stage != domain.StageNegotiating {
		t.Errorf("Stage = %q, want negotiating", f.repo.leads[f.leadID].Stage)
	}
}

func TestAdvanceViewedWaitsWithoutInterest(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageViewed
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "no_action" || result.StageChanged {
		t.Errorf("result = %+v, want waiting no_action", result)
	}
	if f.initiator.calls != 0 {
		t.Errorf("initiator calls = %d, want 0", f.initiator.calls)
	}
	if len(f.repo.appended) != 1 {
		t.Errorf("appended = %d, want 1 audit entry", len(f.repo.appended))
	}
}

func TestAdvanceNegotiatingRemindsOnStaleCounter(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageNegotiating
		l.Negotiation = domain.Negotiation{
			IsActive: true,
			CounterOffers: []domain.CounterOffer{{
				AmountCents: 960_000_000,
				OfferedBy:   domain.ActorAI,
				OfferedAt:   time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC),
				Status:      domain.OfferPending,
			}},
		}
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "counter_offer_reminder" || !result.Success {
		t.Errorf("result = %+v, want successful counter_offer_reminder", result)
	}
	if len(f.dispatcher.sent) != 1 {
		t.Errorf("messages sent = %d, want 1", len(f.dispatcher.sent))
	}
	if f.repo.saveCalls != 0 {
		t.Errorf("saveCalls = %d, want 0 (reminder does not mutate the lead)", f.repo.saveCalls)
	}
}

func TestAdvanceNegotiatingFreshCounterNoReminder(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageNegotiating
		l.Negotiation = domain.Negotiation{
			IsActive: true,
			CounterOffers: []domain.CounterOffer{{
				AmountCents: 960_000_000,
				OfferedBy:   domain.ActorAI,
				OfferedAt:   time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
				Status:      domain.OfferPending,
			}},
		}
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "no_action" {
		t.Errorf("Action = %q, want no_action", result.Action)
	}
	if len(f.dispatcher.sent) != 0 {
		t.Errorf("messages sent = %d, want 0", len(f.dispatcher.sent))
	}
}

func TestAdvanceTerminalStageIsNoOp(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageWon
	})

	result, err := f.svc.Advance(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "no_action" || result.StageChanged {
		t.Errorf("result = %+v, want no_action", result)
	}
	if len(f.repo.appended) != 1 {
		t.Errorf("appended = %d, want 1 audit entry", len(f.repo.appended))
	}
	if f.repo.saveCalls != 0 {
		t.Errorf("saveCalls = %d, want 0", f.repo.saveCalls)
	}
}

func TestAdvanceUnknownLead(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Advance(context.Background(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Errorf("kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestAdvanceVersionConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.saveErr = repository.ErrVersionConflict

	_, err := f.svc.Advance(context.Background(), f.leadID)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestPursueStalledFollowsUpAndDisqualifies(t *testing.T) {
	f := newFixture(t, nil)
	now := f.now

	unresponsive := domain.Lead{
		ID:            uuid.New(),
		ClientName:    "Brian",
		Stage:         domain.StageContacted,
		FollowUpCount: 4,
	}
	stalled := domain.Lead{
		ID:         uuid.New(),
		ClientName: "Carol",
		Stage:      domain.StageQualified,
	}
	f.repo.leads[unresponsive.ID] = unresponsive
	f.repo.leads[stalled.ID] = stalled
	f.repo.due = []domain.Lead{unresponsive, stalled}

	result, err := f.svc.PursueStalled(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Scanned != 2 || result.FollowedUp != 1 || result.Disqualified != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want scanned 2, followed up 1, disqualified 1", result)
	}

	dropped := f.repo.leads[unresponsive.ID]
	if dropped.Stage != domain.StageDisqualified {
		t.Errorf("Stage = %q, want disqualified", dropped.Stage)
	}
	if dropped.DealClosure == nil || dropped.DealClosure.ReasonDisqualified != "unresponsive" {
		t.Errorf("DealClosure = %+v, want unresponsive disqualification", dropped.DealClosure)
	}
	if dropped.AutoFollowUpEnabled || dropped.NextFollowUpDate != nil {
		t.Error("disqualified lead must stop receiving follow-ups")
	}

	kept := f.repo.leads[stalled.ID]
	wantNext := now.Add(7 * 24 * time.Hour)
	if kept.NextFollowUpDate == nil || !kept.NextFollowUpDate.Equal(wantNext) {
		t.Errorf("NextFollowUpDate = %v, want %v (qualified cadence)", kept.NextFollowUpDate, wantNext)
	}
	if kept.FollowUpCount != 1 {
		t.Errorf("FollowUpCount = %d, want 1", kept.FollowUpCount)
	}
}

func TestPursueStalledIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.due = []domain.Lead{{ID: uuid.New(), ClientName: "Dan", Stage: domain.StageContacted}}
	f.repo.saveErr = errors.New("db down")

	result, err := f.svc.PursueStalled(context.Background(), f.now)
	if err != nil {
		t.Fatalf("batch must not fail on a per-lead error: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestReengageAfterCancelledViewing(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageViewingScheduled
		l.BuyingIntent = domain.IntentHigh
	})

	if err := f.svc.ReengageAfterCancelledViewing(context.Background(), f.leadID, "owner unavailable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lead := f.repo.leads[f.leadID]
	if lead.Stage != domain.StageQualified {
		t.Errorf("Stage = %q, want qualified", lead.Stage)
	}
	if !lead.AutoFollowUpEnabled {
		t.Error("re-engaged lead must be back on automated follow-up")
	}
	wantNext := f.now.Add(3 * 24 * time.Hour)
	if lead.NextFollowUpDate == nil || !lead.NextFollowUpDate.Equal(wantNext) {
		t.Errorf("NextFollowUpDate = %v, want %v", lead.NextFollowUpDate, wantNext)
	}
	if len(lead.StageHistory) == 0 || lead.StageHistory[len(lead.StageHistory)-1].Stage != domain.StageQualified {
		t.Errorf("StageHistory = %+v, want an entry back to qualified", lead.StageHistory)
	}
}

func TestReengageIgnoresLeadsInOtherStages(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageNegotiating
	})

	if err := f.svc.ReengageAfterCancelledViewing(context.Background(), f.leadID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.repo.saveCalls != 0 {
		t.Errorf("saveCalls = %d, want 0 for a lead past the viewing stage", f.repo.saveCalls)
	}
	if f.repo.leads[f.leadID].Stage != domain.StageNegotiating {
		t.Error("lead stage must be untouched")
	}
}

func TestCloseDealValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CloseDeal(context.Background(), f.leadID, CloseDealRequest{Outcome: domain.StageQualified})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("non-terminal outcome: kind = %v, want validation", apperr.GetKind(err))
	}

	_, err = f.svc.CloseDeal(context.Background(), f.leadID, CloseDealRequest{Outcome: domain.StageWon})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("won without price: kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestCloseDealWon(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageNegotiating
		l.Negotiation.IsActive = true
	})

	lead, err := f.svc.CloseDeal(context.Background(), f.leadID, CloseDealRequest{
		Outcome:         domain.StageWon,
		FinalPriceCents: 980_000_000,
		Reason:          "buyer signed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.Stage != domain.StageWon {
		t.Errorf("Stage = %q, want won", lead.Stage)
	}
	if lead.DealClosure == nil || lead.DealClosure.CommissionCents != 29_400_000 {
		t.Errorf("DealClosure = %+v, want commission 29400000", lead.DealClosure)
	}
	if lead.DealClosure.DiscountAppliedCents != 20_000_000 {
		t.Errorf("DiscountAppliedCents = %d, want 20000000", lead.DealClosure.DiscountAppliedCents)
	}
	if lead.Negotiation.IsActive {
		t.Error("negotiation should be closed")
	}

	// Closing twice is a conflict.
	_, err = f.svc.CloseDeal(context.Background(), f.leadID, CloseDealRequest{
		Outcome: domain.StageLost, Reason: "changed mind",
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("double close: kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestCloseDealLost(t *testing.T) {
	f := newFixture(t, func(l *domain.Lead) {
		l.Stage = domain.StageNegotiating
	})

	lead, err := f.svc.CloseDeal(context.Background(), f.leadID, CloseDealRequest{
		Outcome: domain.StageLost,
		Reason:  "bought elsewhere",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.Stage != domain.StageLost {
		t.Errorf("Stage = %q, want lost", lead.Stage)
	}
	if lead.DealClosure == nil || lead.DealClosure.ReasonLost != "bought elsewhere" {
		t.Errorf("DealClosure = %+v, want lost with reason", lead.DealClosure)
	}
}

func TestPipeline(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.aggregates = []repository.StageAggregate{
		{Stage: domain.StageNew, Count: 4},
		{Stage: domain.StageNegotiating, Count: 3},
		{Stage: domain.StageWon, Count: 2, RevenueCents: 1_960_000_000},
		{Stage: domain.StageLost, Count: 1},
	}

	stats, err := f.svc.Pipeline(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Total != 10 {
		t.Errorf("Total = %d, want 10", stats.Total)
	}
	if stats.Active != 7 {
		t.Errorf("Active = %d, want 7", stats.Active)
	}
	if stats.Won != 2 || stats.TotalRevenueCents != 1_960_000_000 {
		t.Errorf("Won = %d revenue = %d, want 2 / 1960000000", stats.Won, stats.TotalRevenueCents)
	}
	if stats.ConversionRate != 20 {
		t.Errorf("ConversionRate = %v, want 20", stats.ConversionRate)
	}
	if stats.AverageDealCents != 980_000_000 {
		t.Errorf("AverageDealCents = %d, want 980000000", stats.AverageDealCents)
	}
}

func TestPipelineEmpty(t *testing.T) {
	f := newFixture(t, nil)

	stats, err := f.svc.Pipeline(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 0 || stats.ConversionRate != 0 || stats.AverageDealCents != 0 {
		t.Errorf("stats = %+v, want zero values", stats)
	}
}
