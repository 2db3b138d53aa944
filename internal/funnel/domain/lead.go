package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// All monetary amounts in this package are in cents.

// CommissionRate is the agency commission applied to won deals.
const CommissionRate = 0.03

// StageHistoryEntry is one append-only stage transition record.
type StageHistoryEntry struct {
	Stage     Stage     `json:"stage"`
	ChangedAt time.Time `json:"changedAt"`
	ChangedBy string    `json:"changedBy"`
	Notes     string    `json:"notes,omitempty"`
}

// CounterOfferStatus tracks the lifecycle of a single offer entry.
type CounterOfferStatus string

const (
	OfferPending   CounterOfferStatus = "pending"
	OfferAccepted  CounterOfferStatus = "accepted"
	OfferCountered CounterOfferStatus = "countered"
	OfferRejected  CounterOfferStatus = "rejected"
)

// CounterOffer is one entry in the negotiation's offer ledger.
type CounterOffer struct {
	AmountCents int64              `json:"amountCents"`
	OfferedBy   string             `json:"offeredBy"`
	OfferedAt   time.Time          `json:"offeredAt"`
	Reasoning   string             `json:"reasoning,omitempty"`
	Status      CounterOfferStatus `json:"status"`
}

// NegotiationRules are the per-lead thresholds driving offer evaluation.
type NegotiationRules struct {
	MinAcceptableCents        int64 `json:"minAcceptableCents"`
	MaxDiscountPercent        int   `json:"maxDiscountPercent"`
	AutoAcceptCents           int64 `json:"autoAcceptCents"`
	RequireApprovalBelowCents int64 `json:"requireApprovalBelowCents"`
}

// DefaultNegotiationRules derives the standard rule set from a list price.
func DefaultNegotiationRules(listPriceCents int64) NegotiationRules {
	return NegotiationRules{
		MinAcceptableCents:        RoundCents(float64(listPriceCents) * 0.90),
		MaxDiscountPercent:        10,
		AutoAcceptCents:           RoundCents(float64(listPriceCents) * 0.95),
		RequireApprovalBelowCents: RoundCents(float64(listPriceCents) * 0.90),
	}
}

// Negotiation is the per-lead negotiation sub-record.
type Negotiation struct {
	IsActive          bool              `json:"isActive"`
	AIEnabled         bool              `json:"aiEnabled"`
	Rules             *NegotiationRules `json:"rules,omitempty"`
	InitialOfferCents int64             `json:"initialOfferCents,omitempty"`
	CurrentOfferCents int64             `json:"currentOfferCents,omitempty"`
	CounterOffers     []CounterOffer    `json:"counterOffers,omitempty"`
}

// LatestCounterOffer returns the most recent ledger entry, or nil.
func (n *Negotiation) LatestCounterOffer() *CounterOffer {
	if len(n.CounterOffers) == 0 {
		return nil
	}
	return &n.CounterOffers[len(n.CounterOffers)-1]
}

// DealClosure is written exactly once when a lead reaches a terminal stage.
type DealClosure struct {
	Outcome              string    `json:"outcome"`
	FinalPriceCents      int64     `json:"finalPriceCents,omitempty"`
	ClosedAt             time.Time `json:"closedAt"`
	ClosedBy             string    `json:"closedBy"`
	ReasonLost           string    `json:"reasonLost,omitempty"`
	ReasonDisqualified   string    `json:"reasonDisqualified,omitempty"`
	RevenueCents         int64     `json:"revenueCents,omitempty"`
	CommissionCents      int64     `json:"commissionCents,omitempty"`
	DiscountAppliedCents int64     `json:"discountAppliedCents,omitempty"`
	DiscountPercentage   float64   `json:"discountPercentage,omitempty"`
}

// AIAction is one entry in the automated-action audit trail.
type AIAction struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Reasoning string    `json:"reasoning,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

// AIEngagement aggregates the automated-action history for a lead.
type AIEngagement struct {
	TotalInteractions int        `json:"totalInteractions"`
	LastAIAction      *time.Time `json:"lastAIAction,omitempty"`
	Actions           []AIAction `json:"actions,omitempty"`
}

// Lead is the aggregate root for one prospect's interest in one property.
type Lead struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	CreatedBy  uuid.UUID

	ClientName  string
	ClientEmail string
	ClientPhone string

	Stage        Stage
	Score        int
	BuyingIntent BuyingIntent

	StageHistory []StageHistoryEntry
	Negotiation  Negotiation
	DealClosure  *DealClosure
	AIEngagement AIEngagement

	NextFollowUpDate    *time.Time
	LastFollowUpDate    *time.Time
	FollowUpCount       int
	AutoFollowUpEnabled bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeStage moves the lead to a new stage and appends one history entry.
// A no-op when the stage is unchanged.
func (l *Lead) ChangeStage(to Stage, changedBy, notes string, now time.Time) bool {
	if l.Stage == to {
		return false
	}
	l.Stage = to
	l.StageHistory = append(l.StageHistory, StageHistoryEntry{
		Stage:     to,
		ChangedAt: now,
		ChangedBy: changedBy,
		Notes:     notes,
	})
	return true
}

// RecordAIAction appends one audit entry and bumps the interaction counter.
func (l *Lead) RecordAIAction(action string, success bool, reasoning, outcome string, now time.Time) {
	l.AIEngagement.Actions = append(l.AIEngagement.Actions, AIAction{
		Action:    action,
		Timestamp: now,
		Success:   success,
		Reasoning: reasoning,
		Outcome:   outcome,
	})
	l.AIEngagement.TotalInteractions++
	ts := now
	l.AIEngagement.LastAIAction = &ts
}

// CloseWon writes the deal closure for an accepted offer.
func (l *Lead) CloseWon(finalPriceCents, listPriceCents int64, closedBy string, now time.Time) {
	closure := &DealClosure{
		Outcome:         string(StageWon),
		FinalPriceCents: finalPriceCents,
		ClosedAt:        now,
		ClosedBy:        closedBy,
		RevenueCents:    finalPriceCents,
		CommissionCents: RoundCents(float64(finalPriceCents) * CommissionRate),
	}
	if listPriceCents > 0 && finalPriceCents < listPriceCents {
		closure.DiscountAppliedCents = listPriceCents - finalPriceCents
		closure.DiscountPercentage = roundPct(float64(closure.DiscountAppliedCents) / float64(listPriceCents) * 100)
	}
	l.DealClosure = closure
}

// CloseLost writes the deal closure for a lost or disqualified lead.
func (l *Lead) CloseLost(outcome Stage, closedBy, reason string, now time.Time) {
	closure := &DealClosure{
		Outcome:  string(outcome),
		ClosedAt: now,
		ClosedBy: closedBy,
	}
	switch outcome {
	case StageLost:
		closure.ReasonLost = reason
	case StageDisqualified:
		closure.ReasonDisqualified = reason
	}
	l.DealClosure = closure
}

// DaysAsLead returns whole days since the lead was created.
func (l *Lead) DaysAsLead(now time.Time) int {
	d := now.Sub(l.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// RoundCents rounds a fractional cent amount to the nearest cent.
func RoundCents(v float64) int64 {
	return int64(math.Round(v))
}

func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}
