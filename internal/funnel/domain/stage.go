// Package domain holds the lead aggregate and funnel stage semantics.
package domain

// Stage is a lead's position in the sales funnel.
type Stage string

const (
	StageNew              Stage = "new"
	StageContacted        Stage = "contacted"
	StageQualified        Stage = "qualified"
	StageViewingScheduled Stage = "viewing_scheduled"
	StageViewed           Stage = "viewed"
	StageNegotiating      Stage = "negotiating"
	StageOfferMade        Stage = "offer_made"
	StageWon              Stage = "won"
	StageLost             Stage = "lost"
	StageDisqualified     Stage = "disqualified"
)

var knownStages = map[Stage]struct{}{
	StageNew:              {},
	StageContacted:        {},
	StageQualified:        {},
	StageViewingScheduled: {},
	StageViewed:           {},
	StageNegotiating:      {},
	StageOfferMade:        {},
	StageWon:              {},
	StageLost:             {},
	StageDisqualified:     {},
}

// IsKnownStage reports whether the value is a valid funnel stage.
func IsKnownStage(stage Stage) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminal reports whether the stage is final. Terminal leads are never
// mutated by automated funnel actions.
func (s Stage) IsTerminal() bool {
	return s == StageWon || s == StageLost || s == StageDisqualified
}

// BuyingIntent is the externally-produced intent classification.
type BuyingIntent string

const (
	IntentLow      BuyingIntent = "low"
	IntentMedium   BuyingIntent = "medium"
	IntentHigh     BuyingIntent = "high"
	IntentVeryHigh BuyingIntent = "very-high"
)

// IsHot reports whether the lead is likely to book a viewing without
// further nurturing.
func (i BuyingIntent) IsHot() bool {
	return i == IntentHigh || i == IntentVeryHigh
}

// Actors recorded in stage history and counter offers.
const (
	ActorManual = "manual"
	ActorAI     = "ai"
	ActorSystem = "system"
	ActorLead   = "lead"
)

// QualificationScoreThreshold is the minimum score for a contacted lead
// to be promoted to qualified.
const QualificationScoreThreshold = 60
