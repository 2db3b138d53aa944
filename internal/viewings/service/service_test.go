package service

import (
	"context"
	"testing"
	"time"

	"estatefunnel_backend/internal/advisor"
	"estatefunnel_backend/internal/events"
	"estatefunnel_backend/internal/notify"
	"estatefunnel_backend/internal/viewings/domain"
	"estatefunnel_backend/internal/viewings/repository"
	"estatefunnel_backend/platform/apperr"
	"estatefunnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	viewings   map[uuid.UUID]domain.Viewing
	properties map[uuid.UUID]repository.Property
	users      map[uuid.UUID]repository.User
	saveCalls  int
}

func (f *fakeRepo) Create(_ context.Context, v *domain.Viewing) error {
	v.Version = 1
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	f.viewings[v.ID] = *v
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Viewing, error) {
	v, ok := f.viewings[id]
	if !ok {
		return domain.Viewing{}, repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) Save(_ context.Context, v *domain.Viewing) error {
	f.saveCalls++
	v.Version++
	f.viewings[v.ID] = *v
	return nil
}

func (f *fakeRepo) ListActiveByProperty(_ context.Context, propertyID uuid.UUID) ([]domain.Viewing, error) {
	active := make([]domain.Viewing, 0)
	for _, v := range f.viewings {
		if v.PropertyID == propertyID && v.Status.IsActive() {
			active = append(active, v)
		}
	}
	return active, nil
}

func (f *fakeRepo) ListUpcoming(_ context.Context, from, until time.Time) ([]domain.Viewing, error) {
	upcoming := make([]domain.Viewing, 0)
	for _, v := range f.viewings {
		if v.Status.IsActive() && v.ScheduledAt.After(from) && !v.ScheduledAt.After(until) {
			upcoming = append(upcoming, v)
		}
	}
	return upcoming, nil
}

func (f *fakeRepo) GetProperty(_ context.Context, id uuid.UUID) (repository.Property, error) {
	p, ok := f.properties[id]
	if !ok {
		return repository.Property{}, repository.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakeRepo) GetUser(_ context.Context, id uuid.UUID) (repository.User, error) {
	u, ok := f.users[id]
	if !ok {
		return repository.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type fakeLeads struct {
	contact        LeadContact
	scheduledCalls int
	completedCalls int
	lastReady      bool
}

func (f *fakeLeads) Contact(_ context.Context, _ uuid.UUID) (LeadContact, error) {
	return f.contact, nil
}

func (f *fakeLeads) OnViewingScheduled(_ context.Context, _ uuid.UUID, _ time.Time, _ bool, _ string) error {
	f.scheduledCalls++
	return nil
}

func (f *fakeLeads) OnViewingCompleted(_ context.Context, _ uuid.UUID, ready bool) error {
	f.completedCalls++
	f.lastReady = ready
	return nil
}

type fakeDispatcher struct {
	sent []notify.Recipient
	fail map[string]bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, rcpt notify.Recipient, _ notify.Message) notify.Result {
	f.sent = append(f.sent, rcpt)
	if f.fail[rcpt.Name] {
		return notify.Result{Attempted: []string{notify.ChannelWhatsApp}}
	}
	return notify.Result{Attempted: []string{notify.ChannelWhatsApp}, Channel: notify.ChannelWhatsApp, Delivered: true}
}

type fakeAdvisor struct {
	advice advisor.SlotAdvice
	err    error
	calls  int
}

func (f *fakeAdvisor) SuggestOffer(_ context.Context, _ advisor.OfferContext) (advisor.OfferAdvice, error) {
	return advisor.OfferAdvice{}, advisor.ErrUnavailable
}

func (f *fakeAdvisor) SuggestSlot(_ context.Context, _ advisor.SlotContext) (advisor.SlotAdvice, error) {
	f.calls++
	return f.advice, f.err
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

type fixture struct {
	svc        *Service
	repo       *fakeRepo
	leads      *fakeLeads
	dispatcher *fakeDispatcher
	adv        *fakeAdvisor
	leadID     uuid.UUID
	propID     uuid.UUID
	ownerID    uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	leadID := uuid.New()
	propID := uuid.New()
	ownerID := uuid.New()
	// Monday morning.
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	repo := &fakeRepo{
		viewings: map[uuid.UUID]domain.Viewing{},
		properties: map[uuid.UUID]repository.Property{
			propID: {ID: propID, OwnerID: ownerID, Title: "Kilimani 3BR", Location: "Nairobi"},
		},
		users: map[uuid.UUID]repository.User{
			ownerID: {ID: ownerID, Name: "Owner", Phone: "+254700000001", Email: "owner@example.com"},
		},
	}
	leads := &fakeLeads{contact: LeadContact{
		Name: "Amina", Phone: "+254712345678", Email: "amina@example.com",
		PropertyID: propID, Score: 80, BuyingIntent: "high",
	}}
	dispatcher := &fakeDispatcher{}
	adv := &fakeAdvisor{err: advisor.ErrUnavailable}

	f := &fixture{
		repo: repo, leads: leads, dispatcher: dispatcher, adv: adv,
		leadID: leadID, propID: propID, ownerID: ownerID, now: now,
	}
	f.svc = New(repo, leads, adv, dispatcher, nopBus{}, logger.New("development"))
	f.svc.now = func() time.Time { return now }
	return f
}

func TestFindSlotsFallbackPicksEarliest(t *testing.T) {
	f := newFixture(t)

	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !proposal.Recommended.Start.Equal(want) {
		t.Errorf("Recommended = %v, want %v", proposal.Recommended.Start, want)
	}
	if proposal.AIAssisted {
		t.Error("fallback proposal must not be marked AI assisted")
	}
	if len(proposal.Alternatives) != 5 {
		t.Errorf("Alternatives = %d, want 5", len(proposal.Alternatives))
	}
}

func TestFindSlotsUsesAdvisorIndex(t *testing.T) {
	f := newFixture(t)
	f.adv.err = nil
	f.adv.advice = advisor.SlotAdvice{Index: 2, Reasoning: "afternoon suits high intent", Urgency: "high"}

	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)
	if !proposal.Recommended.Start.Equal(want) {
		t.Errorf("Recommended = %v, want %v", proposal.Recommended.Start, want)
	}
	if !proposal.AIAssisted || proposal.Reasoning == "" {
		t.Error("advisor pick should carry reasoning and the AI flag")
	}
}

func TestFindSlotsOutOfRangeAdviceFallsBack(t *testing.T) {
	f := newFixture(t)
	f.adv.err = nil
	f.adv.advice = advisor.SlotAdvice{Index: 99}

	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !proposal.Recommended.Start.Equal(want) || proposal.AIAssisted {
		t.Errorf("out-of-range advice must fall back to the earliest slot, got %v", proposal.Recommended.Start)
	}
}

func TestFindSlotsExcludesBookedSlot(t *testing.T) {
	f := newFixture(t)
	f.repo.viewings[uuid.New()] = domain.Viewing{
		ID:              uuid.New(),
		PropertyID:      f.propID,
		ScheduledAt:     time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Status:          domain.StatusScheduled,
	}

	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proposal.Recommended.Start.Equal(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)) {
		t.Error("booked 09:00 slot must not be recommended")
	}
}

func TestFindSlotsPreferredBeyondEarliestWindowIsIgnored(t *testing.T) {
	f := newFixture(t)

	// The first day alone fills the shortlist, so a preferred date on
	// day two must not displace the earliest recommendation.
	preferred := []time.Time{time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)}
	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, preferred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !proposal.Recommended.Start.Equal(want) {
		t.Errorf("Recommended = %v, want earliest slot %v", proposal.Recommended.Start, want)
	}
	for _, alt := range proposal.Alternatives {
		if alt.Start.Day() != 9 {
			t.Errorf("alternative %v is outside the earliest shortlist", alt.Start)
		}
	}
}

func TestFindSlotsPreferredWithinEarliestWindowSurfacesFirst(t *testing.T) {
	f := newFixture(t)

	// Block the first five slots of day one so the shortlist spans into
	// day two, which is the lead's preferred date.
	for hour := 9; hour <= 13; hour++ {
		f.repo.viewings[uuid.New()] = domain.Viewing{
			ID:              uuid.New(),
			PropertyID:      f.propID,
			ScheduledAt:     time.Date(2026, 3, 9, hour, 0, 0, 0, time.UTC),
			DurationMinutes: 30,
			Status:          domain.StatusScheduled,
		}
	}

	preferred := []time.Time{time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)}
	proposal, err := f.svc.FindSlots(context.Background(), f.leadID, f.propID, preferred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !proposal.Recommended.Start.Equal(want) {
		t.Errorf("Recommended = %v, want preferred-day slot %v", proposal.Recommended.Start, want)
	}
	if !proposal.Recommended.Preferred {
		t.Error("recommended slot should carry the preferred flag")
	}
}

func TestScheduleBooksAndNotifiesAllAttendees(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID:      f.leadID,
		PropertyID:  f.propID,
		StartTime:   start,
		ScheduledBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if viewing.Status != domain.StatusScheduled {
		t.Errorf("Status = %q, want scheduled", viewing.Status)
	}
	if len(viewing.Attendees) != 2 {
		t.Fatalf("Attendees = %d, want lead + owner", len(viewing.Attendees))
	}
	if f.leads.scheduledCalls != 1 {
		t.Errorf("lead transitions = %d, want 1", f.leads.scheduledCalls)
	}
	if len(f.dispatcher.sent) != 2 {
		t.Errorf("invitations = %d, want 2", len(f.dispatcher.sent))
	}
}

func TestScheduleRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	if _, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: start,
	}); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	_, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: start.Add(15 * time.Minute),
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict for overlapping slot", apperr.GetKind(err))
	}
}

func TestScheduleRejectsPastTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(-time.Hour),
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestAutoBookUsesRecommendedSlot(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.AutoBook(context.Background(), f.leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Viewing.IsAIGenerated {
		t.Error("auto-booked viewing must be flagged AI generated")
	}
	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !result.Viewing.ScheduledAt.Equal(want) {
		t.Errorf("ScheduledAt = %v, want %v", result.Viewing.ScheduledAt, want)
	}
	if result.Reasoning == "" {
		t.Error("auto-book must carry reasoning")
	}
}

func TestConfirmFlow(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	after, err := f.svc.Confirm(context.Background(), viewing.ID, domain.RoleLead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Status != domain.StatusScheduled || !after.Confirmation.LeadConfirmed {
		t.Errorf("after lead confirm: %+v", after.Confirmation)
	}

	saves := f.repo.saveCalls
	// Repeat is idempotent and skips the save entirely.
	if _, err := f.svc.Confirm(context.Background(), viewing.ID, domain.RoleLead); err != nil {
		t.Fatalf("repeat confirm failed: %v", err)
	}
	if f.repo.saveCalls != saves {
		t.Error("repeated confirmation must not persist anything")
	}

	both, err := f.svc.Confirm(context.Background(), viewing.ID, domain.RoleOwner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if both.Status != domain.StatusConfirmed {
		t.Errorf("Status = %q, want confirmed once both parties confirmed", both.Status)
	}

	if _, err := f.svc.Confirm(context.Background(), viewing.ID, "visitor"); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("unknown role: kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestCompleteRecordsOutcomeOnceAndMovesLead(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	done, err := f.svc.Complete(context.Background(), viewing.ID, CompleteRequest{
		Attended: true, Interested: true, ReadyToNegotiate: true, FeedbackRating: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.Outcome == nil {
		t.Errorf("viewing = %+v, want completed with outcome", done.Status)
	}
	if f.leads.completedCalls != 1 || !f.leads.lastReady {
		t.Errorf("lead transition calls = %d (ready=%v), want 1 with ready true", f.leads.completedCalls, f.leads.lastReady)
	}

	_, err = f.svc.Complete(context.Background(), viewing.ID, CompleteRequest{Attended: false})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("double completion: kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestCompleteReadyToNegotiateWithoutInterest(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Readiness to negotiate alone drives the stage transition, even when
	// the feedback form left the interest box unchecked.
	_, err = f.svc.Complete(context.Background(), viewing.ID, CompleteRequest{
		Attended: true, Interested: false, ReadyToNegotiate: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.leads.completedCalls != 1 || !f.leads.lastReady {
		t.Errorf("lead transition calls = %d (ready=%v), want 1 with ready true", f.leads.completedCalls, f.leads.lastReady)
	}
}

func TestCompleteNoShowEndsViewingWithoutLeadTransition(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	done, err := f.svc.Complete(context.Background(), viewing.ID, CompleteRequest{Attended: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != domain.StatusNoShow {
		t.Errorf("Status = %q, want no_show", done.Status)
	}
	if done.Status.IsActive() {
		t.Error("a no-show viewing must no longer occupy its slot")
	}
	if f.leads.completedCalls != 0 {
		t.Errorf("lead transition calls = %d, want 0 for a no-show", f.leads.completedCalls)
	}
}

func TestRescheduleLinksViewings(t *testing.T) {
	f := newFixture(t)
	original, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	newTime := f.now.Add(50 * time.Hour)
	replacement, err := f.svc.Reschedule(context.Background(), original.ID, newTime, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if replacement.RescheduledFrom == nil || *replacement.RescheduledFrom != original.ID {
		t.Error("replacement must link back to the original viewing")
	}
	if replacement.Confirmation.LeadConfirmed || replacement.Confirmation.AgentConfirmed {
		t.Error("replacement starts a fresh confirmation cycle")
	}
	if f.repo.viewings[original.ID].Status != domain.StatusRescheduled {
		t.Errorf("original status = %q, want rescheduled", f.repo.viewings[original.ID].Status)
	}
}

func TestSendRemindersDedupesPerDay(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(20 * time.Hour),
	}); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	f.dispatcher.sent = nil

	first, err := f.svc.SendReminders(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Sent != 1 || first.Skipped != 0 {
		t.Errorf("first run = %+v, want 1 sent", first)
	}
	// One reminder per attendee.
	if len(f.dispatcher.sent) != 2 {
		t.Errorf("reminder messages = %d, want 2", len(f.dispatcher.sent))
	}

	second, err := f.svc.SendReminders(context.Background(), f.now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Sent != 0 || second.Skipped != 1 {
		t.Errorf("same-day rerun = %+v, want 1 skipped", second)
	}
	if len(f.dispatcher.sent) != 2 {
		t.Errorf("rerun sent extra messages: %d", len(f.dispatcher.sent))
	}
}

func TestSendRemindersRecordsOnlyReachedAttendees(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(20 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	f.dispatcher.fail = map[string]bool{"Owner": true}

	result, err := f.svc.SendReminders(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 {
		t.Errorf("Sent = %d, want 1", result.Sent)
	}

	stored := f.repo.viewings[viewing.ID]
	if len(stored.Reminders) != 1 {
		t.Fatalf("reminder entries = %d, want one per reached attendee", len(stored.Reminders))
	}
	if stored.Reminders[0].Attendee != domain.RoleLead || !stored.Reminders[0].Delivered {
		t.Errorf("entry = %+v, want delivered lead reminder", stored.Reminders[0])
	}
}

func TestSendRemindersAllUnreachableCountsFailed(t *testing.T) {
	f := newFixture(t)
	viewing, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(20 * time.Hour),
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	f.dispatcher.fail = map[string]bool{"Amina": true, "Owner": true}

	result, err := f.svc.SendReminders(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || result.Sent != 0 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
	// Nothing persisted, so a later retry the same day is not deduped away.
	if len(f.repo.viewings[viewing.ID].Reminders) != 0 {
		t.Error("undelivered reminders must not be recorded")
	}
}

func TestSendRemindersIgnoresDistantViewings(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Schedule(context.Background(), ScheduleRequest{
		LeadID: f.leadID, PropertyID: f.propID, StartTime: f.now.Add(72 * time.Hour),
	}); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	result, err := f.svc.SendReminders(context.Background(), f.now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scanned != 0 {
		t.Errorf("Scanned = %d, want 0 for viewings beyond the window", result.Scanned)
	}
}
