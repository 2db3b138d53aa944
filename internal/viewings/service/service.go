// Package service implements the viewing scheduler: slot proposal,
// booking, confirmation, completion and reminders.
package service

import (
	"context"
	"errors"
	"fmt"
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

const (
	shortlistSize   = 10
	maxAlternatives = 5
	reminderWindow  = 24 * time.Hour
)

// Repository defines the data access interface needed by the scheduler.
type Repository interface {
	Create(ctx context.Context, v *domain.Viewing) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Viewing, error)
	Save(ctx context.Context, v *domain.Viewing) error
	ListActiveByProperty(ctx context.Context, propertyID uuid.UUID) ([]domain.Viewing, error)
	ListUpcoming(ctx context.Context, from, until time.Time) ([]domain.Viewing, error)
	GetProperty(ctx context.Context, id uuid.UUID) (repository.Property, error)
	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
}

// Dispatcher sends multi-channel notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, rcpt notify.Recipient, msg notify.Message) notify.Result
}

// LeadContact is the slice of lead state the scheduler needs.
type LeadContact struct {
	Name          string
	Phone         string
	Email         string
	PropertyID    uuid.UUID
	Score         int
	BuyingIntent  string
	FollowUpCount int
}

// LeadGateway is the port into the funnel for lead reads and stage
// transitions triggered by viewing lifecycle events.
type LeadGateway interface {
	Contact(ctx context.Context, leadID uuid.UUID) (LeadContact, error)
	OnViewingScheduled(ctx context.Context, leadID uuid.UUID, when time.Time, auto bool, reasoning string) error
	OnViewingCompleted(ctx context.Context, leadID uuid.UUID, readyToNegotiate bool) error
}

// Service is the viewing scheduler.
type Service struct {
	repo       Repository
	leads      LeadGateway
	advisor    advisor.Advisor
	dispatcher Dispatcher
	eventBus   events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates the viewing scheduler. The advisor may be nil, in which
// case the earliest candidate slot is always recommended.
func New(repo Repository, leads LeadGateway, adv advisor.Advisor, dispatcher Dispatcher, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		leads:      leads,
		advisor:    adv,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		log:        log,
		now:        time.Now,
	}
}

// SlotProposal is the result of a slot search.
type SlotProposal struct {
	Recommended  domain.SlotCandidate   `json:"recommended"`
	Alternatives []domain.SlotCandidate `json:"alternatives"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	AIAssisted   bool                   `json:"aiAssisted"`
}

// FindSlots proposes viewing slots for a lead on a property. Existing
// active viewings block their half-open time ranges.
func (s *Service) FindSlots(ctx context.Context, leadID, propertyID uuid.UUID, preferredDates []time.Time) (SlotProposal, error) {
	contact, err := s.leads.Contact(ctx, leadID)
	if err != nil {
		return SlotProposal{}, apperr.NotFound("lead not found")
	}
	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		if errors.Is(err, repository.ErrPropertyNotFound) {
			return SlotProposal{}, apperr.NotFound("property not found")
		}
		return SlotProposal{}, err
	}

	active, err := s.repo.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return SlotProposal{}, err
	}
	busy := make([]domain.BusyInterval, 0, len(active))
	for _, v := range active {
		busy = append(busy, domain.BusyInterval{Start: v.ScheduledAt, End: v.EndTime()})
	}

	candidates := domain.GenerateSlots(s.now(), busy, preferredDates)
	if len(candidates) == 0 {
		return SlotProposal{}, apperr.NotFound("no available viewing slots in the next two weeks")
	}

	shortlist := shortlistCandidates(candidates)
	recommended, reasoning, aiAssisted := s.pickSlot(ctx, shortlist, contact)

	alternatives := make([]domain.SlotCandidate, 0, maxAlternatives)
	for _, c := range shortlist {
		if c.Start.Equal(recommended.Start) {
			continue
		}
		alternatives = append(alternatives, c)
		if len(alternatives) == maxAlternatives {
			break
		}
	}

	return SlotProposal{
		Recommended:  recommended,
		Alternatives: alternatives,
		Reasoning:    reasoning,
		AIAssisted:   aiAssisted,
	}, nil
}

// shortlistCandidates takes the chronologically earliest slots, capped
// at the advisor shortlist size, and surfaces preferred dates first
// within that window.
func shortlistCandidates(candidates []domain.SlotCandidate) []domain.SlotCandidate {
	earliest := candidates
	if len(earliest) > shortlistSize {
		earliest = earliest[:shortlistSize]
	}

	shortlist := make([]domain.SlotCandidate, 0, len(earliest))
	for _, c := range earliest {
		if c.Preferred {
			shortlist = append(shortlist, c)
		}
	}
	for _, c := range earliest {
		if !c.Preferred {
			shortlist = append(shortlist, c)
		}
	}
	return shortlist
}

// pickSlot consults the advisor when available; the first candidate is
// the deterministic fallback.
func (s *Service) pickSlot(ctx context.Context, shortlist []domain.SlotCandidate, contact LeadContact) (domain.SlotCandidate, string, bool) {
	if s.advisor == nil {
		return shortlist[0], "", false
	}

	slots := make([]advisor.SlotCandidate, len(shortlist))
	for i, c := range shortlist {
		slots[i] = advisor.SlotCandidate{Start: c.Start, Preferred: c.Preferred}
	}

	advice, err := s.advisor.SuggestSlot(ctx, advisor.SlotContext{
		Candidates:    slots,
		LeadScore:     contact.Score,
		BuyingIntent:  contact.BuyingIntent,
		FollowUpCount: contact.FollowUpCount,
	})
	if err != nil || advice.Index < 0 || advice.Index >= len(shortlist) {
		if err != nil {
			s.log.Warn("slot advisor unavailable, using earliest candidate", "error", err)
		}
		return shortlist[0], "", false
	}
	return shortlist[advice.Index], advice.Reasoning, true
}

// ScheduleRequest describes one viewing booking.
type ScheduleRequest struct {
	LeadID        uuid.UUID
	PropertyID    uuid.UUID
	StartTime     time.Time
	ViewingType   string
	ScheduledBy   uuid.UUID
	IsAIGenerated bool
	AIReasoning   string
}

// Schedule books a viewing, fixes the attendee list, transitions the lead
// and dispatches invitations. One attendee's delivery failure never blocks
// the others.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (domain.Viewing, error) {
	now := s.now()
	if !req.StartTime.After(now) {
		return domain.Viewing{}, apperr.Validation("viewing time must be in the future")
	}
	if req.ViewingType == "" {
		req.ViewingType = "in_person"
	}

	contact, err := s.leads.Contact(ctx, req.LeadID)
	if err != nil {
		return domain.Viewing{}, apperr.NotFound("lead not found")
	}
	prop, err := s.repo.GetProperty(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, repository.ErrPropertyNotFound) {
			return domain.Viewing{}, apperr.NotFound("property not found")
		}
		return domain.Viewing{}, err
	}

	end := req.StartTime.Add(domain.DefaultDurationMinutes * time.Minute)
	active, err := s.repo.ListActiveByProperty(ctx, req.PropertyID)
	if err != nil {
		return domain.Viewing{}, err
	}
	for _, v := range active {
		if req.StartTime.Before(v.EndTime()) && end.After(v.ScheduledAt) {
			return domain.Viewing{}, apperr.Conflict("the requested slot overlaps an existing viewing")
		}
	}

	attendees := []domain.Attendee{
		{Role: domain.RoleLead, Name: contact.Name, Phone: contact.Phone, Email: contact.Email},
	}
	if owner, err := s.repo.GetUser(ctx, prop.OwnerID); err == nil {
		attendees = append(attendees, domain.Attendee{Role: domain.RoleOwner, Name: owner.Name, Phone: owner.Phone, Email: owner.Email})
	} else {
		s.log.Warn("property owner unavailable for attendee list", "propertyId", prop.ID, "error", err)
	}

	viewing := domain.Viewing{
		ID:              uuid.New(),
		LeadID:          req.LeadID,
		PropertyID:      req.PropertyID,
		ScheduledBy:     req.ScheduledBy,
		ScheduledAt:     req.StartTime,
		DurationMinutes: domain.DefaultDurationMinutes,
		ViewingType:     req.ViewingType,
		Status:          domain.StatusScheduled,
		IsAIGenerated:   req.IsAIGenerated,
		AIReasoning:     req.AIReasoning,
		Attendees:       attendees,
		Reminders:       []domain.ReminderEntry{},
	}

	if err := s.repo.Create(ctx, &viewing); err != nil {
		return domain.Viewing{}, err
	}

	if err := s.leads.OnViewingScheduled(ctx, req.LeadID, req.StartTime, req.IsAIGenerated, req.AIReasoning); err != nil {
		s.log.Warn("lead stage transition failed after booking", "leadId", req.LeadID, "error", err)
	}

	s.sendToAttendees(ctx, viewing, notify.Message{
		Subject: "Viewing scheduled for " + prop.Title,
		Body: fmt.Sprintf("A viewing of %s (%s) has been scheduled for %s. Please confirm your attendance.",
			prop.Title, prop.Location, req.StartTime.Format("Monday, 2 Jan 2006 at 15:04")),
	})

	s.eventBus.Publish(ctx, events.ViewingScheduled{
		BaseEvent:  events.NewBaseEvent(),
		ViewingID:  viewing.ID,
		LeadID:     viewing.LeadID,
		PropertyID: viewing.PropertyID,
		AgentID:    viewing.ScheduledBy,
		StartTime:  viewing.ScheduledAt,
		AutoBooked: viewing.IsAIGenerated,
	})

	return viewing, nil
}

// sendToAttendees dispatches one message per attendee with per-attendee
// failure isolation.
func (s *Service) sendToAttendees(ctx context.Context, viewing domain.Viewing, msg notify.Message) {
	for _, a := range viewing.Attendees {
		result := s.dispatcher.Dispatch(ctx, notify.Recipient{Name: a.Name, Phone: a.Phone, Email: a.Email}, msg)
		if !result.Delivered {
			s.log.Warn("viewing notification undelivered", "viewingId", viewing.ID, "attendee", a.Role)
		}
	}
}

// AutoBookResult describes an automatically booked viewing.
type AutoBookResult struct {
	Viewing   domain.Viewing
	Reasoning string
}

// AutoBook finds the best slot for a hot lead and books it without human
// input. The lead's own property drives the search.
func (s *Service) AutoBook(ctx context.Context, leadID uuid.UUID) (AutoBookResult, error) {
	contact, err := s.leads.Contact(ctx, leadID)
	if err != nil {
		return AutoBookResult{}, apperr.NotFound("lead not found")
	}

	proposal, err := s.FindSlots(ctx, leadID, contact.PropertyID, nil)
	if err != nil {
		return AutoBookResult{}, err
	}

	reasoning := proposal.Reasoning
	if reasoning == "" {
		reasoning = "earliest available slot"
	}

	viewing, err := s.Schedule(ctx, ScheduleRequest{
		LeadID:        leadID,
		PropertyID:    contact.PropertyID,
		StartTime:     proposal.Recommended.Start,
		ScheduledBy:   uuid.Nil,
		IsAIGenerated: true,
		AIReasoning:   reasoning,
	})
	if err != nil {
		return AutoBookResult{}, err
	}

	return AutoBookResult{Viewing: viewing, Reasoning: reasoning}, nil
}

// Confirm records one party's attendance confirmation. Repeated calls by
// the same party are no-ops.
func (s *Service) Confirm(ctx context.Context, viewingID uuid.UUID, role string) (domain.Viewing, error) {
	if role != domain.RoleLead && role != domain.RoleAgent && role != domain.RoleOwner {
		return domain.Viewing{}, apperr.Validation("role must be lead, agent or owner")
	}

	viewing, err := s.repo.GetByID(ctx, viewingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Viewing{}, apperr.NotFound("viewing not found")
		}
		return domain.Viewing{}, err
	}
	if !viewing.Status.IsActive() {
		return domain.Viewing{}, apperr.Conflict("viewing can no longer be confirmed")
	}

	if !viewing.Confirm(role, s.now()) {
		// Idempotent repeat, nothing to persist.
		return viewing, nil
	}

	if err := s.repo.Save(ctx, &viewing); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Viewing{}, apperr.Conflict("viewing was modified concurrently, retry")
		}
		return domain.Viewing{}, err
	}

	s.eventBus.Publish(ctx, events.ViewingConfirmed{
		BaseEvent:      events.NewBaseEvent(),
		ViewingID:      viewing.ID,
		LeadID:         viewing.LeadID,
		Party:          role,
		FullyConfirmed: viewing.FullyConfirmed(),
	})

	return viewing, nil
}

// CompleteRequest carries the viewing outcome feedback.
type CompleteRequest struct {
	Attended         bool
	Interested       bool
	ReadyToNegotiate bool
	FeedbackRating   int
	FeedbackNotes    string
}

// Complete records the outcome once and moves the lead to its next
// funnel stage.
func (s *Service) Complete(ctx context.Context, viewingID uuid.UUID, req CompleteRequest) (domain.Viewing, error) {
	viewing, err := s.repo.GetByID(ctx, viewingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Viewing{}, apperr.NotFound("viewing not found")
		}
		return domain.Viewing{}, err
	}
	if !viewing.Status.IsActive() {
		return domain.Viewing{}, apperr.Conflict("viewing is not open for completion")
	}

	if !viewing.RecordOutcome(domain.Outcome{
		Attended:         req.Attended,
		Interested:       req.Interested,
		ReadyToNegotiate: req.ReadyToNegotiate,
		FeedbackRating:   req.FeedbackRating,
		FeedbackNotes:    req.FeedbackNotes,
	}, s.now()) {
		return domain.Viewing{}, apperr.Conflict("viewing outcome was already recorded")
	}

	if err := s.repo.Save(ctx, &viewing); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Viewing{}, apperr.Conflict("viewing was modified concurrently, retry")
		}
		return domain.Viewing{}, err
	}

	if req.Attended {
		if err := s.leads.OnViewingCompleted(ctx, viewing.LeadID, req.ReadyToNegotiate); err != nil {
			s.log.Warn("lead stage transition failed after completion", "leadId", viewing.LeadID, "error", err)
		}
	}

	s.eventBus.Publish(ctx, events.ViewingCompleted{
		BaseEvent:        events.NewBaseEvent(),
		ViewingID:        viewing.ID,
		LeadID:           viewing.LeadID,
		Interested:       req.Interested,
		ReadyToNegotiate: req.ReadyToNegotiate,
		FeedbackRating:   req.FeedbackRating,
	})

	return viewing, nil
}

// Reschedule books a replacement viewing and marks the original as
// rescheduled. The new viewing starts a fresh confirmation cycle.
func (s *Service) Reschedule(ctx context.Context, viewingID uuid.UUID, newTime time.Time, scheduledBy uuid.UUID) (domain.Viewing, error) {
	old, err := s.repo.GetByID(ctx, viewingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Viewing{}, apperr.NotFound("viewing not found")
		}
		return domain.Viewing{}, err
	}
	if !old.Status.IsActive() {
		return domain.Viewing{}, apperr.Conflict("viewing can no longer be rescheduled")
	}
	if !newTime.After(s.now()) {
		return domain.Viewing{}, apperr.Validation("viewing time must be in the future")
	}

	oldID := old.ID
	replacement := domain.Viewing{
		ID:              uuid.New(),
		LeadID:          old.LeadID,
		PropertyID:      old.PropertyID,
		ScheduledBy:     scheduledBy,
		ScheduledAt:     newTime,
		DurationMinutes: old.DurationMinutes,
		ViewingType:     old.ViewingType,
		Status:          domain.StatusScheduled,
		Attendees:       old.Attendees,
		Reminders:       []domain.ReminderEntry{},
		RescheduledFrom: &oldID,
	}

	if err := s.repo.Create(ctx, &replacement); err != nil {
		return domain.Viewing{}, err
	}

	old.Status = domain.StatusRescheduled
	if err := s.repo.Save(ctx, &old); err != nil {
		s.log.Warn("failed to mark old viewing rescheduled", "viewingId", old.ID, "error", err)
	}

	prop, err := s.repo.GetProperty(ctx, replacement.PropertyID)
	if err == nil {
		s.sendToAttendees(ctx, replacement, notify.Message{
			Subject: "Viewing rescheduled for " + prop.Title,
			Body: fmt.Sprintf("Your viewing of %s has moved to %s. Please confirm your attendance.",
				prop.Title, newTime.Format("Monday, 2 Jan 2006 at 15:04")),
		})
	}

	s.eventBus.Publish(ctx, events.ViewingRescheduled{
		BaseEvent:    events.NewBaseEvent(),
		ViewingID:    replacement.ID,
		LeadID:       replacement.LeadID,
		PreviousTime: old.ScheduledAt,
		NewTime:      newTime,
	})

	return replacement, nil
}

// Cancel calls off an active viewing.
func (s *Service) Cancel(ctx context.Context, viewingID uuid.UUID, reason string) (domain.Viewing, error) {
	viewing, err := s.repo.GetByID(ctx, viewingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Viewing{}, apperr.NotFound("viewing not found")
		}
		return domain.Viewing{}, err
	}
	if !viewing.Status.IsActive() {
		return domain.Viewing{}, apperr.Conflict("viewing is not active")
	}

	viewing.Status = domain.StatusCancelled
	if err := s.repo.Save(ctx, &viewing); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return domain.Viewing{}, apperr.Conflict("viewing was modified concurrently, retry")
		}
		return domain.Viewing{}, err
	}

	s.eventBus.Publish(ctx, events.ViewingCancelled{
		BaseEvent: events.NewBaseEvent(),
		ViewingID: viewing.ID,
		LeadID:    viewing.LeadID,
		Reason:    reason,
	})

	return viewing, nil
}

// ReminderResult summarizes one reminder batch run.
type ReminderResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SendReminders notifies attendees of viewings starting within the next
// 24 hours. At most one reminder round goes out per viewing per calendar
// day, so a same-day rerun appends nothing.
func (s *Service) SendReminders(ctx context.Context, now time.Time) (ReminderResult, error) {
	upcoming, err := s.repo.ListUpcoming(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return ReminderResult{}, err
	}

	result := ReminderResult{Scanned: len(upcoming)}
	for _, viewing := range upcoming {
		if viewing.HasReminderOn(now) {
			result.Skipped++
			continue
		}
		if err := s.remindViewing(ctx, viewing, now); err != nil {
			result.Failed++
			s.log.Warn("viewing reminder failed", "viewingId", viewing.ID, "error", err)
			continue
		}
		result.Sent++
	}
	return result, nil
}

func (s *Service) remindViewing(ctx context.Context, viewing domain.Viewing, now time.Time) error {
	prop, err := s.repo.GetProperty(ctx, viewing.PropertyID)
	if err != nil {
		return err
	}

	msg := notify.Message{
		Subject: "Reminder: viewing of " + prop.Title,
		Body: fmt.Sprintf("This is a reminder of your viewing of %s (%s) on %s.",
			prop.Title, prop.Location, viewing.ScheduledAt.Format("Monday, 2 Jan 2006 at 15:04")),
	}

	reached := 0
	for _, a := range viewing.Attendees {
		res := s.dispatcher.Dispatch(ctx, notify.Recipient{Name: a.Name, Phone: a.Phone, Email: a.Email}, msg)
		if !res.Delivered {
			s.log.Warn("viewing reminder undelivered", "viewingId", viewing.ID, "attendee", a.Role)
			continue
		}
		viewing.Reminders = append(viewing.Reminders, domain.ReminderEntry{
			SentAt:    now,
			Attendee:  a.Role,
			Channel:   res.Channel,
			Delivered: true,
		})
		reached++
	}
	if reached == 0 {
		return fmt.Errorf("no attendee reachable for viewing %s", viewing.ID)
	}

	return s.repo.Save(ctx, &viewing)
}
