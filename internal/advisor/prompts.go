package advisor

import (
	"fmt"
	"strings"
)

const negotiationSystemPrompt = `You are a real estate negotiation strategist for the Kenyan property market.
You evaluate buyer offers on behalf of sellers and respond with a single JSON object:
{"action": "accepted" | "countered" | "rejected", "counterOffer": <number, KES, required when action is countered>, "reasoning": "<one or two sentences>"}
Counter offers must stay between the minimum acceptable price and the list price. Do not include any other fields.`

const slotSystemPrompt = `You are a scheduling assistant for a real estate agency.
Given a numbered list of available viewing slots and the lead's urgency signals, pick the single best slot.
Respond with a single JSON object:
{"slotIndex": <zero-based index into the list>, "urgency": "low" | "medium" | "high", "reasoning": "<one sentence>"}
Do not include any other fields.`

func buildOfferPrompt(oc OfferContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List price: KES %d\n", oc.ListPriceCents/100)
	fmt.Fprintf(&b, "Buyer offer: KES %d (%.1f%% of list)\n", oc.OfferCents/100, oc.OfferPercentOfList)
	fmt.Fprintf(&b, "Lead score: %d/100, buying intent: %s\n", oc.LeadScore, oc.BuyingIntent)
	fmt.Fprintf(&b, "Days as lead: %d, prior offers: %d\n", oc.DaysAsLead, oc.PriorOfferCount)
	fmt.Fprintf(&b, "Rules: minimum acceptable KES %d, auto-accept at KES %d, max discount %d%%\n",
		oc.MinAcceptableCents/100, oc.AutoAcceptCents/100, oc.MaxDiscountPercent)
	b.WriteString("Decide whether to accept, counter, or reject this offer.")
	return b.String()
}

func buildSlotPrompt(sc SlotContext) string {
	var b strings.Builder
	b.WriteString("Available viewing slots:\n")
	for i, candidate := range sc.Candidates {
		marker := ""
		if candidate.Preferred {
			marker = " (matches lead's preferred date)"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i, candidate.Start.Format("Monday 2 January 2006 15:04"), marker)
	}
	fmt.Fprintf(&b, "Lead score: %d/100, buying intent: %s, follow-ups so far: %d\n",
		sc.LeadScore, sc.BuyingIntent, sc.FollowUpCount)
	b.WriteString("Pick the best slot index for this lead.")
	return b.String()
}
