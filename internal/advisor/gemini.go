package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"estatefunnel_backend/platform/ai/gemini"
	"estatefunnel_backend/platform/logger"
)

// GeminiAdvisor implements Advisor on top of the Gemini JSON-mode client.
type GeminiAdvisor struct {
	client *gemini.Client
	log    *logger.Logger
}

// NewGeminiAdvisor wraps a Gemini client as a decision advisor.
func NewGeminiAdvisor(client *gemini.Client, log *logger.Logger) *GeminiAdvisor {
	return &GeminiAdvisor{client: client, log: log}
}

type offerResponse struct {
	Action       string  `json:"action"`
	CounterOffer float64 `json:"counterOffer"`
	Reasoning    string  `json:"reasoning"`
}

type slotResponse struct {
	SlotIndex *int   `json:"slotIndex"`
	Urgency   string `json:"urgency"`
	Reasoning string `json:"reasoning"`
}

// SuggestOffer asks the model for a negotiation strategy. Any provider or
// schema failure is reported as ErrUnavailable.
func (a *GeminiAdvisor) SuggestOffer(ctx context.Context, oc OfferContext) (OfferAdvice, error) {
	raw, err := a.client.GenerateJSON(ctx, negotiationSystemPrompt, buildOfferPrompt(oc))
	if err != nil {
		a.log.Warn("advisor offer suggestion failed", "error", err)
		return OfferAdvice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	advice, err := parseOfferAdvice(raw, oc)
	if err != nil {
		a.log.Warn("advisor offer response unparsable", "error", err)
		return OfferAdvice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return advice, nil
}

// SuggestSlot asks the model to pick a viewing slot. Any provider or
// schema failure is reported as ErrUnavailable.
func (a *GeminiAdvisor) SuggestSlot(ctx context.Context, sc SlotContext) (SlotAdvice, error) {
	if len(sc.Candidates) == 0 {
		return SlotAdvice{}, fmt.Errorf("%w: no candidates", ErrUnavailable)
	}

	raw, err := a.client.GenerateJSON(ctx, slotSystemPrompt, buildSlotPrompt(sc))
	if err != nil {
		a.log.Warn("advisor slot suggestion failed", "error", err)
		return SlotAdvice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	advice, err := parseSlotAdvice(raw, len(sc.Candidates))
	if err != nil {
		a.log.Warn("advisor slot response unparsable", "error", err)
		return SlotAdvice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return advice, nil
}

// parseOfferAdvice validates the model output against the strict schema.
// Counter amounts are clamped into [minAcceptable, listPrice].
func parseOfferAdvice(raw string, oc OfferContext) (OfferAdvice, error) {
	var resp offerResponse
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &resp); err != nil {
		return OfferAdvice{}, fmt.Errorf("decode offer advice: %w", err)
	}

	action := OfferAction(strings.ToLower(strings.TrimSpace(resp.Action)))
	switch action {
	case OfferAccepted, OfferRejected:
		return OfferAdvice{Action: action, Reasoning: resp.Reasoning}, nil
	case OfferCountered:
		if resp.CounterOffer <= 0 {
			return OfferAdvice{}, fmt.Errorf("countered without a counter amount")
		}
		counterCents := int64(math.Round(resp.CounterOffer * 100))
		if counterCents < oc.MinAcceptableCents {
			counterCents = oc.MinAcceptableCents
		}
		if counterCents > oc.ListPriceCents {
			counterCents = oc.ListPriceCents
		}
		return OfferAdvice{Action: action, CounterCents: counterCents, Reasoning: resp.Reasoning}, nil
	default:
		return OfferAdvice{}, fmt.Errorf("unknown action %q", resp.Action)
	}
}

func parseSlotAdvice(raw string, candidateCount int) (SlotAdvice, error) {
	var resp slotResponse
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &resp); err != nil {
		return SlotAdvice{}, fmt.Errorf("decode slot advice: %w", err)
	}

	if resp.SlotIndex == nil {
		return SlotAdvice{}, fmt.Errorf("missing slot index")
	}
	index := *resp.SlotIndex
	if index < 0 || index >= candidateCount {
		return SlotAdvice{}, fmt.Errorf("slot index %d out of range [0,%d)", index, candidateCount)
	}

	return SlotAdvice{Index: index, Urgency: resp.Urgency, Reasoning: resp.Reasoning}, nil
}

// stripCodeFences removes markdown fences some models wrap around JSON
// even in JSON mode.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
