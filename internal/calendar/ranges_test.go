package calendar

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

//
// Тесты для SplitToTimeSlots
//

func TestSplitToTimeSlots_Basic(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 11, 30)},
		{Start: mustTime(t, 2025, 1, 1, 11, 30), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}
	if !equalTimeRangeSlices(slots, expected) {
		t.Fatalf("expected %+v, got %+v", expected, slots)
	}
}

func TestSplitToTimeSlots_TailDropped(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 10)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}

	if _, err := SplitToTimeSlots(tr, 0); err == nil {
		t.Fatalf("expected error for zero slot duration, got nil")
	}
}

func TestClockRange_Overlaps(t *testing.T) {
	a := ClockRange{Start: MustClock("10:00"), End: MustClock("11:00")}
	touching := ClockRange{Start: MustClock("11:00"), End: MustClock("12:00")}
	crossing := ClockRange{Start: MustClock("10:30"), End: MustClock("11:30")}

	if a.Overlaps(touching, false) {
		t.Fatalf("touching ranges must not overlap in strict mode")
	}
	if !a.Overlaps(touching, true) {
		t.Fatalf("touching ranges must overlap in inclusive mode")
	}
	if !a.Overlaps(crossing, false) {
		t.Fatalf("expected overlap")
	}
}
