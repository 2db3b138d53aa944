package domain

import (
	"testing"
	"time"
)

func TestGenerateSlotsExcludesOverlaps(t *testing.T) {
	// Monday 2026-03-09, 08:00. A viewing occupies 10:00-10:30 the same day.
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	busy := []BusyInterval{{
		Start: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC),
	}}

	slots := GenerateSlots(now, busy, nil)

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.Start.Format(time.RFC3339)] = true
	}

	if starts[time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)] {
		t.Error("10:00 slot overlaps an existing viewing and must be excluded")
	}
	if !starts[time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)] {
		t.Error("09:00 slot should be available")
	}
	if !starts[time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC).Format(time.RFC3339)] {
		t.Error("11:00 slot should be available")
	}
}

func TestGenerateSlotsSkipsSundaysAndPast(t *testing.T) {
	// Saturday 2026-03-14, 12:30.
	now := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

	slots := GenerateSlots(now, nil, nil)
	if len(slots) == 0 {
		t.Fatal("expected candidate slots")
	}

	for _, s := range slots {
		if s.Start.Weekday() == time.Sunday {
			t.Fatalf("slot on Sunday: %v", s.Start)
		}
		if !s.Start.After(now) {
			t.Fatalf("slot in the past: %v", s.Start)
		}
	}

	// Same-day slots start at the next full hour after now.
	first := slots[0]
	want := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	if !first.Start.Equal(want) {
		t.Errorf("first slot = %v, want %v", first.Start, want)
	}
}

func TestGenerateSlotsHourRange(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	for _, s := range GenerateSlots(now, nil, nil) {
		if s.Start.Hour() < 9 || s.Start.Hour() > 18 {
			t.Fatalf("slot outside business hours: %v", s.Start)
		}
	}
}

func TestGenerateSlotsFlagsPreferredDates(t *testing.T) {
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	preferred := []time.Time{time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)}

	for _, s := range GenerateSlots(now, nil, preferred) {
		onPreferredDay := s.Start.Day() == 11 && s.Start.Month() == time.March
		if s.Preferred != onPreferredDay {
			t.Fatalf("slot %v preferred = %v, want %v", s.Start, s.Preferred, onPreferredDay)
		}
	}
}

func TestGenerateSlotsAscending(t *testing.T) {
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	slots := GenerateSlots(now, nil, nil)
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots out of order at %d: %v before %v", i, slots[i].Start, slots[i-1].Start)
		}
	}
}
