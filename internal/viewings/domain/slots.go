package domain

import "time"

// Slot generation window.
const (
	slotWindowDays = 14
	firstSlotHour  = 9
	lastSlotHour   = 18
	slotMinutes    = 30
)

// SlotCandidate is one proposable viewing start time.
type SlotCandidate struct {
	Start     time.Time `json:"start"`
	Preferred bool      `json:"preferred"`
}

// BusyInterval is an occupied time range on the property's calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// GenerateSlots enumerates candidate viewing slots for the next 14 days:
// hourly starts from 09:00 through 18:00 inclusive, Sundays skipped,
// slots already in the past or overlapping a busy interval excluded.
// Slots on a preferred date are flagged. The result is in ascending
// start order.
func GenerateSlots(now time.Time, busy []BusyInterval, preferredDates []time.Time) []SlotCandidate {
	preferred := make(map[string]bool, len(preferredDates))
	for _, d := range preferredDates {
		preferred[d.Format("2006-01-02")] = true
	}

	candidates := make([]SlotCandidate, 0, slotWindowDays*(lastSlotHour-firstSlotHour+1))
	for day := 0; day < slotWindowDays; day++ {
		date := now.AddDate(0, 0, day)
		if date.Weekday() == time.Sunday {
			continue
		}

		dayKey := date.Format("2006-01-02")
		for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
			start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, now.Location())
			if !start.After(now) {
				continue
			}
			if overlapsAny(start, busy) {
				continue
			}
			candidates = append(candidates, SlotCandidate{
				Start:     start,
				Preferred: preferred[dayKey],
			})
		}
	}
	return candidates
}

// overlapsAny checks the half-open slot [start, start+30m) against the
// busy intervals.
func overlapsAny(start time.Time, busy []BusyInterval) bool {
	end := start.Add(slotMinutes * time.Minute)
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
