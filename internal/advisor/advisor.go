// Package advisor defines the AI decision capability consumed by the
// negotiation engine and the viewing scheduler. Implementations must
// degrade to ErrUnavailable instead of raising on provider outage so
// callers can apply their deterministic fallbacks.
package advisor

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable signals that the advisor could not produce a usable
// recommendation (provider outage, timeout, or unparsable output).
var ErrUnavailable = errors.New("decision advisor unavailable")

// OfferAction is the advisor's verdict on a buyer offer.
type OfferAction string

const (
	OfferAccepted  OfferAction = "accepted"
	OfferCountered OfferAction = "countered"
	OfferRejected  OfferAction = "rejected"
)

// OfferContext carries the full negotiation picture for one buyer offer.
// All monetary amounts are in cents.
type OfferContext struct {
	ListPriceCents     int64
	OfferCents         int64
	OfferPercentOfList float64
	LeadScore          int
	BuyingIntent       string
	DaysAsLead         int
	PriorOfferCount    int
	MinAcceptableCents int64
	AutoAcceptCents    int64
	MaxDiscountPercent int
}

// OfferAdvice is the advisor's negotiation recommendation.
type OfferAdvice struct {
	Action       OfferAction
	CounterCents int64
	Reasoning    string
}

// SlotCandidate is one proposed viewing start time.
type SlotCandidate struct {
	Start     time.Time
	Preferred bool
}

// SlotContext carries candidate slots plus lead urgency signals.
type SlotContext struct {
	Candidates    []SlotCandidate
	LeadScore     int
	BuyingIntent  string
	FollowUpCount int
}

// SlotAdvice selects one candidate by index.
type SlotAdvice struct {
	Index     int
	Urgency   string
	Reasoning string
}

// Advisor is the decision capability interface.
type Advisor interface {
	// SuggestOffer recommends how to respond to a buyer offer.
	SuggestOffer(ctx context.Context, oc OfferContext) (OfferAdvice, error)
	// SuggestSlot picks the best viewing slot from the candidates.
	SuggestSlot(ctx context.Context, sc SlotContext) (SlotAdvice, error)
}
