package advisor

import (
	"testing"
)

func TestParseOfferAdvice(t *testing.T) {
	oc := OfferContext{
		ListPriceCents:     1_000_000_000, // KES 10,000,000
		MinAcceptableCents: 900_000_000,
	}

	tests := []struct {
		name        string
		raw         string
		wantAction  OfferAction
		wantCounter int64
		wantErr     bool
	}{
		{
			name:       "accepted",
			raw:        `{"action":"accepted","reasoning":"strong offer"}`,
			wantAction: OfferAccepted,
		},
		{
			name:       "rejected",
			raw:        `{"action":"rejected","reasoning":"lowball"}`,
			wantAction: OfferRejected,
		},
		{
			name:        "countered with amount",
			raw:         `{"action":"countered","counterOffer":9600000,"reasoning":"meet in the middle"}`,
			wantAction:  OfferCountered,
			wantCounter: 960_000_000,
		},
		{
			name:        "counter below floor is clamped",
			raw:         `{"action":"countered","counterOffer":5000000,"reasoning":"too low"}`,
			wantAction:  OfferCountered,
			wantCounter: 900_000_000,
		},
		{
			name:        "counter above list is clamped",
			raw:         `{"action":"countered","counterOffer":12000000,"reasoning":"ambitious"}`,
			wantAction:  OfferCountered,
			wantCounter: 1_000_000_000,
		},
		{
			name:        "fenced json is tolerated",
			raw:         "```json\n{\"action\":\"countered\",\"counterOffer\":9600000,\"reasoning\":\"ok\"}\n```",
			wantAction:  OfferCountered,
			wantCounter: 960_000_000,
		},
		{
			name:       "action casing normalized",
			raw:        `{"action":"Accepted","reasoning":"fine"}`,
			wantAction: OfferAccepted,
		},
		{
			name:    "countered without amount",
			raw:     `{"action":"countered","reasoning":"hmm"}`,
			wantErr: true,
		},
		{
			name:    "unknown action",
			raw:     `{"action":"escalate","reasoning":"??"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `I think you should counter at 9.6M`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advice, err := parseOfferAdvice(tt.raw, oc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", advice)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if advice.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", advice.Action, tt.wantAction)
			}
			if advice.CounterCents != tt.wantCounter {
				t.Errorf("CounterCents = %d, want %d", advice.CounterCents, tt.wantCounter)
			}
		})
	}
}

func TestParseSlotAdvice(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		count     int
		wantIndex int
		wantErr   bool
	}{
		{
			name:      "valid index",
			raw:       `{"slotIndex":2,"urgency":"high","reasoning":"soonest weekday"}`,
			count:     5,
			wantIndex: 2,
		},
		{
			name:      "zero index",
			raw:       `{"slotIndex":0,"urgency":"low","reasoning":"first works"}`,
			count:     1,
			wantIndex: 0,
		},
		{
			name:    "index out of range",
			raw:     `{"slotIndex":10,"urgency":"high","reasoning":"?"}`,
			count:   5,
			wantErr: true,
		},
		{
			name:    "negative index",
			raw:     `{"slotIndex":-1,"urgency":"high","reasoning":"?"}`,
			count:   5,
			wantErr: true,
		},
		{
			name:    "missing index",
			raw:     `{"urgency":"high","reasoning":"?"}`,
			count:   5,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advice, err := parseSlotAdvice(tt.raw, tt.count)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", advice)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if advice.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", advice.Index, tt.wantIndex)
			}
		})
	}
}
