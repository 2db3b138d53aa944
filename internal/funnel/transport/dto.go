package transport

import (
	"time"

	"estatefunnel_backend/internal/funnel/domain"
	"estatefunnel_backend/internal/notify"

	"github.com/google/uuid"
)

// Request DTOs

type SubmitOfferRequest struct {
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	Message     string `json:"message,omitempty" validate:"max=500"`
}

type SetNegotiationRulesRequest struct {
	MinAcceptableCents        int64 `json:"minAcceptableCents" validate:"required,gt=0"`
	AutoAcceptCents           int64 `json:"autoAcceptCents" validate:"required,gt=0"`
	MaxDiscountPercent        int   `json:"maxDiscountPercent" validate:"min=0,max=100"`
	RequireApprovalBelowCents int64 `json:"requireApprovalBelowCents,omitempty" validate:"min=0"`
}

type ToggleAIRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type CloseDealRequest struct {
	Outcome         string `json:"outcome" validate:"required,oneof=won lost disqualified"`
	FinalPriceCents int64  `json:"finalPriceCents,omitempty" validate:"min=0"`
	Reason          string `json:"reason,omitempty" validate:"max=500"`
}

// Response DTOs

type LeadResponse struct {
	ID         uuid.UUID `json:"id"`
	PropertyID uuid.UUID `json:"propertyId"`

	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail,omitempty"`
	ClientPhone string `json:"clientPhone,omitempty"`

	Stage        domain.Stage        `json:"stage"`
	Score        int                 `json:"score"`
	BuyingIntent domain.BuyingIntent `json:"buyingIntent,omitempty"`

	StageHistory []domain.StageHistoryEntry `json:"stageHistory,omitempty"`
	Negotiation  domain.Negotiation         `json:"negotiation"`
	DealClosure  *domain.DealClosure        `json:"dealClosure,omitempty"`
	AIEngagement domain.AIEngagement        `json:"aiEngagement"`

	NextFollowUpDate *time.Time `json:"nextFollowUpDate,omitempty"`
	FollowUpCount    int        `json:"followUpCount"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromLead(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:               lead.ID,
		PropertyID:       lead.PropertyID,
		ClientName:       lead.ClientName,
		ClientEmail:      lead.ClientEmail,
		ClientPhone:      lead.ClientPhone,
		Stage:            lead.Stage,
		Score:            lead.Score,
		BuyingIntent:     lead.BuyingIntent,
		StageHistory:     lead.StageHistory,
		Negotiation:      lead.Negotiation,
		DealClosure:      lead.DealClosure,
		AIEngagement:     lead.AIEngagement,
		NextFollowUpDate: lead.NextFollowUpDate,
		FollowUpCount:    lead.FollowUpCount,
		Version:          lead.Version,
		CreatedAt:        lead.CreatedAt,
		UpdatedAt:        lead.UpdatedAt,
	}
}

type AdvanceResponse struct {
	Action       string         `json:"action"`
	Success      bool           `json:"success"`
	Outcome      string         `json:"outcome"`
	StageChanged bool           `json:"stageChanged"`
	Stage        domain.Stage   `json:"stage"`
	Notification *notify.Result `json:"notification,omitempty"`
	Lead         LeadResponse   `json:"lead"`
}

type OfferDecisionResponse struct {
	Decision     string         `json:"decision"`
	CounterCents int64          `json:"counterCents,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	AIAssisted   bool           `json:"aiAssisted"`
	Notification *notify.Result `json:"notification,omitempty"`
	Lead         LeadResponse   `json:"lead"`
}
