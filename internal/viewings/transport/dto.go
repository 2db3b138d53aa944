package transport

import (
	"time"

	"estatefunnel_backend/internal/viewings/domain"

	"github.com/google/uuid"
)

// Request DTOs

type FindSlotsRequest struct {
	LeadID         uuid.UUID `form:"leadId" validate:"required"`
	PropertyID     uuid.UUID `form:"propertyId" validate:"required"`
	PreferredDates []string  `form:"preferredDates" validate:"omitempty,dive,datetime=2006-01-02"`
}

type ScheduleViewingRequest struct {
	LeadID      uuid.UUID `json:"leadId" validate:"required"`
	PropertyID  uuid.UUID `json:"propertyId" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	ViewingType string    `json:"viewingType,omitempty" validate:"omitempty,oneof=in_person virtual"`
}

type ConfirmViewingRequest struct {
	Role string `json:"role" validate:"required,oneof=lead agent owner"`
}

type CompleteViewingRequest struct {
	Attended         bool   `json:"attended"`
	Interested       bool   `json:"interested"`
	ReadyToNegotiate bool   `json:"readyToNegotiate"`
	FeedbackRating   int    `json:"feedbackRating,omitempty" validate:"min=0,max=5"`
	FeedbackNotes    string `json:"feedbackNotes,omitempty" validate:"max=2000"`
}

type RescheduleViewingRequest struct {
	NewTime time.Time `json:"newTime" validate:"required"`
}

type CancelViewingRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Response DTOs

type ViewingResponse struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	PropertyID  uuid.UUID `json:"propertyId"`
	ScheduledBy uuid.UUID `json:"scheduledBy,omitempty"`

	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes"`
	ViewingType     string    `json:"viewingType"`

	Status        domain.Status `json:"status"`
	IsAIGenerated bool          `json:"isAiGenerated"`
	AIReasoning   string        `json:"aiReasoning,omitempty"`

	Attendees    []domain.Attendee      `json:"attendees"`
	Confirmation domain.Confirmation    `json:"confirmation"`
	Reminders    []domain.ReminderEntry `json:"reminders,omitempty"`
	Outcome      *domain.Outcome        `json:"outcome,omitempty"`

	RescheduledFrom *uuid.UUID `json:"rescheduledFrom,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromViewing(v domain.Viewing) ViewingResponse {
	return ViewingResponse{
		ID:              v.ID,
		LeadID:          v.LeadID,
		PropertyID:      v.PropertyID,
		ScheduledBy:     v.ScheduledBy,
		ScheduledAt:     v.ScheduledAt,
		DurationMinutes: v.DurationMinutes,
		ViewingType:     v.ViewingType,
		Status:          v.Status,
		IsAIGenerated:   v.IsAIGenerated,
		AIReasoning:     v.AIReasoning,
		Attendees:       v.Attendees,
		Confirmation:    v.Confirmation,
		Reminders:       v.Reminders,
		Outcome:         v.Outcome,
		RescheduledFrom: v.RescheduledFrom,
		Version:         v.Version,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}
