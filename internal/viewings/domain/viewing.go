// Package domain holds the viewing aggregate and the candidate slot
// generator. It has no infrastructure dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the viewing lifecycle state.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// IsActive reports whether the viewing still occupies its time slot.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Attendee roles.
const (
	RoleLead      = "lead"
	RoleOwner     = "owner"
	RoleAgent     = "agent"
	RoleCompanion = "companion"
)

// Attendee is one party expected at the viewing. The attendee list is
// fixed at creation.
type Attendee struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Confirmation tracks per-party attendance confirmation.
type Confirmation struct {
	LeadConfirmed    bool       `json:"leadConfirmed"`
	LeadConfirmedAt  *time.Time `json:"leadConfirmedAt,omitempty"`
	AgentConfirmed   bool       `json:"agentConfirmed"`
	AgentConfirmedAt *time.Time `json:"agentConfirmedAt,omitempty"`
}

// ReminderEntry records one reminder actually sent to one attendee.
type ReminderEntry struct {
	SentAt    time.Time `json:"sentAt"`
	Attendee  string    `json:"attendee"`
	Channel   string    `json:"channel,omitempty"`
	Delivered bool      `json:"delivered"`
}

// Outcome is recorded exactly once when the viewing completes.
type Outcome struct {
	Attended         bool      `json:"attended"`
	Interested       bool      `json:"interested"`
	ReadyToNegotiate bool      `json:"readyToNegotiate"`
	FeedbackRating   int       `json:"feedbackRating,omitempty"`
	FeedbackNotes    string    `json:"feedbackNotes,omitempty"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// Viewing is the aggregate root for one property viewing appointment.
type Viewing struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	PropertyID  uuid.UUID
	ScheduledBy uuid.UUID

	ScheduledAt     time.Time
	DurationMinutes int
	ViewingType     string

	Status        Status
	IsAIGenerated bool
	AIReasoning   string

	Attendees    []Attendee
	Confirmation Confirmation
	Reminders    []ReminderEntry
	Outcome      *Outcome

	RescheduledFrom *uuid.UUID

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultDurationMinutes is the standard viewing length.
const DefaultDurationMinutes = 30

// EndTime returns the end of the occupied slot.
func (v *Viewing) EndTime() time.Time {
	return v.ScheduledAt.Add(time.Duration(v.DurationMinutes) * time.Minute)
}

// Confirm records one party's confirmation. Repeated confirmations by the
// same party are a no-op and never move the original timestamp. The status
// becomes confirmed only once both sides have confirmed.
func (v *Viewing) Confirm(role string, now time.Time) (changed bool) {
	switch role {
	case RoleLead:
		if !v.Confirmation.LeadConfirmed {
			v.Confirmation.LeadConfirmed = true
			ts := now
			v.Confirmation.LeadConfirmedAt = &ts
			changed = true
		}
	case RoleAgent, RoleOwner:
		if !v.Confirmation.AgentConfirmed {
			v.Confirmation.AgentConfirmed = true
			ts := now
			v.Confirmation.AgentConfirmedAt = &ts
			changed = true
		}
	}

	if v.Confirmation.LeadConfirmed && v.Confirmation.AgentConfirmed && v.Status == StatusScheduled {
		v.Status = StatusConfirmed
		changed = true
	}
	return changed
}

// FullyConfirmed reports whether both parties have confirmed.
func (v *Viewing) FullyConfirmed() bool {
	return v.Confirmation.LeadConfirmed && v.Confirmation.AgentConfirmed
}

// RecordOutcome closes the viewing. The outcome is written once. A
// viewing nobody attended ends as no_show instead of completed.
func (v *Viewing) RecordOutcome(outcome Outcome, now time.Time) bool {
	if v.Outcome != nil {
		return false
	}
	outcome.RecordedAt = now
	v.Outcome = &outcome
	if outcome.Attended {
		v.Status = StatusCompleted
	} else {
		v.Status = StatusNoShow
	}
	return true
}

// HasReminderOn reports whether any reminder was already sent on the
// given calendar day.
func (v *Viewing) HasReminderOn(day time.Time) bool {
	y, m, d := day.Date()
	for _, r := range v.Reminders {
		ry, rm, rd := r.SentAt.Date()
		if ry == y && rm == m && rd == d {
			return true
		}
	}
	return false
}
