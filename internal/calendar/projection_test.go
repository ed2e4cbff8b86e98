package calendar

import (
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cancelOn(d time.Time, recurring bool, bounds ...string) model.AvailabilityException {
	e := model.AvailabilityException{
		Date:        datatypes.Date(d),
		Type:        model.ExceptionTypeCancel,
		IsRecurring: recurring,
	}
	if len(bounds) == 2 {
		e.StartTime = ClockPtr(MustClock(bounds[0]))
		e.EndTime = ClockPtr(MustClock(bounds[1]))
	}
	return e
}

func addOn(d time.Time, start, end string) model.AvailabilityException {
	return model.AvailabilityException{
		Date:      datatypes.Date(d),
		Type:      model.ExceptionTypeAdd,
		StartTime: ClockPtr(MustClock(start)),
		EndTime:   ClockPtr(MustClock(end)),
	}
}

func clocks(cs []datatypes.Time) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = FormatClock(c)
	}
	return out
}

//
// Тесты для CheckSlot
//

func TestCheckSlot_WeeklyCoverage(t *testing.T) {
	// 2025-10-20 — понедельник
	monday := date(2025, 10, 20)
	rules := []model.WeeklyRule{rule(0, "09:00", "17:00")}

	cases := []struct {
		at   string
		want SlotVerdict
	}{
		{"09:00", SlotOK},
		{"14:00", SlotOK},
		{"16:59", SlotOK},
		{"17:00", SlotNoWeeklyCoverage},
		{"08:59", SlotNoWeeklyCoverage},
	}
	for _, tc := range cases {
		if got := CheckSlot(rules, nil, monday, MustClock(tc.at)); got != tc.want {
			t.Fatalf("at %s: expected %s, got %s", tc.at, tc.want, got)
		}
	}

	if got := CheckSlot(rules, nil, monday.AddDate(0, 0, 1), MustClock("14:00")); got != SlotNoWeeklyCoverage {
		t.Fatalf("expected tuesday to be uncovered, got %s", got)
	}
}

func TestCheckSlot_InactiveRuleIgnored(t *testing.T) {
	r := rule(0, "09:00", "17:00")
	r.IsActive = false

	if got := CheckSlot([]model.WeeklyRule{r}, nil, date(2025, 10, 20), MustClock("10:00")); got != SlotNoWeeklyCoverage {
		t.Fatalf("expected inactive rule to be ignored, got %s", got)
	}
}

func TestCheckSlot_DateExceptionOverridesWeekly(t *testing.T) {
	monday := date(2025, 10, 20)
	nextMonday := monday.AddDate(0, 0, 7)
	rules := []model.WeeklyRule{rule(0, "09:00", "17:00")}
	excs := []model.AvailabilityException{cancelOn(monday, false)}

	if got := CheckSlot(rules, excs, monday, MustClock("10:00")); got != SlotDateException {
		t.Fatalf("expected date exception, got %s", got)
	}
	if got := CheckSlot(rules, excs, nextMonday, MustClock("10:00")); got != SlotOK {
		t.Fatalf("expected next monday to be free, got %s", got)
	}
}

func TestCheckSlot_RangedCancel(t *testing.T) {
	monday := date(2025, 10, 20)
	rules := []model.WeeklyRule{rule(0, "09:00", "17:00")}
	excs := []model.AvailabilityException{cancelOn(monday, false, "12:00", "14:00")}

	if got := CheckSlot(rules, excs, monday, MustClock("12:30")); got != SlotDateException {
		t.Fatalf("expected 12:30 cancelled, got %s", got)
	}
	if got := CheckSlot(rules, excs, monday, MustClock("14:00")); got != SlotOK {
		t.Fatalf("expected 14:00 to be free, got %s", got)
	}
}

func TestCheckSlot_RecurringException(t *testing.T) {
	// 2025-01-01 — среда, 2026-01-01 — четверг
	rules := []model.WeeklyRule{
		rule(2, "09:00", "17:00"),
		rule(3, "09:00", "17:00"),
	}
	excs := []model.AvailabilityException{cancelOn(date(2024, 1, 1), true)}

	for _, d := range []time.Time{date(2025, 1, 1), date(2026, 1, 1)} {
		if got := CheckSlot(rules, excs, d, MustClock("10:00")); got != SlotRecurringException {
			t.Fatalf("%s: expected recurring exception, got %s", FormatDate(d), got)
		}
	}
	if got := CheckSlot(rules, excs, date(2025, 1, 8), MustClock("10:00")); got != SlotOK {
		t.Fatalf("expected other wednesday free, got %s", got)
	}
}

func TestCheckSlot_AddExceptionDoesNotGrantSlot(t *testing.T) {
	saturday := date(2025, 10, 25)
	excs := []model.AvailabilityException{addOn(saturday, "10:00", "12:00")}

	if got := CheckSlot(nil, excs, saturday, MustClock("10:00")); got != SlotNoWeeklyCoverage {
		t.Fatalf("expected no weekly coverage, got %s", got)
	}
}

func TestOccursOn_LeapDay(t *testing.T) {
	e := cancelOn(date(2024, 2, 29), true)

	if !OccursOn(&e, date(2025, 2, 28)) {
		t.Fatalf("expected feb 29 exception to apply on feb 28 of a common year")
	}
	if OccursOn(&e, date(2025, 3, 1)) {
		t.Fatalf("expected feb 29 exception not to apply on mar 1")
	}
	if OccursOn(&e, date(2028, 2, 28)) {
		t.Fatalf("expected feb 28 of a leap year not to match")
	}
	if !OccursOn(&e, date(2028, 2, 29)) {
		t.Fatalf("expected feb 29 of a leap year to match")
	}

	once := cancelOn(date(2024, 2, 29), false)
	if OccursOn(&once, date(2025, 2, 28)) {
		t.Fatalf("expected non-recurring exception to match only its date")
	}
}

//
// Тесты для Project
//

func TestProject_DaysAndAvailability(t *testing.T) {
	monday := date(2025, 10, 20)
	rules := []model.WeeklyRule{rule(0, "09:00", "11:00"), rule(1, "10:00", "12:00")}
	excs := []model.AvailabilityException{cancelOn(monday.AddDate(0, 0, 1), false)}

	days, err := Project(rules, excs, monday, monday.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}

	if !days[0].IsAvailable || len(days[0].Weekly) != 1 {
		t.Fatalf("expected monday available with 1 rule, got %+v", days[0])
	}
	if got := clocks(days[0].Slots); !equalStrings(got, []string{"09:00", "09:50"}) {
		t.Fatalf("unexpected monday slots %v", got)
	}

	if days[1].IsAvailable || len(days[1].Exceptions) != 1 || len(days[1].Slots) != 0 {
		t.Fatalf("expected tuesday cancelled, got %+v", days[1])
	}

	if !days[2].IsAvailable || len(days[2].Weekly) != 0 {
		t.Fatalf("expected wednesday without rules but available, got %+v", days[2])
	}
}

func TestProject_SlotsWithAddAndRangedCancel(t *testing.T) {
	monday := date(2025, 10, 20)
	rules := []model.WeeklyRule{rule(0, "09:00", "12:20")}
	excs := []model.AvailabilityException{
		cancelOn(monday, false, "10:00", "11:00"),
		addOn(monday, "15:00", "16:00"),
	}

	days, err := Project(rules, excs, monday, monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !days[0].IsAvailable {
		t.Fatalf("ranged cancel must not close the whole day")
	}
	// 09:00, 09:50, 10:40 (отменён), 11:30; затем окно add 15:00
	if got := clocks(days[0].Slots); !equalStrings(got, []string{"09:00", "09:50", "11:30", "15:00"}) {
		t.Fatalf("unexpected slots %v", got)
	}
}

func TestProject_InvalidRange(t *testing.T) {
	d := date(2025, 10, 20)

	if _, err := Project(nil, nil, d, d.AddDate(0, 0, -1)); !errors.Is(err, ErrRangeOrder) {
		t.Fatalf("expected ErrRangeOrder, got %v", err)
	}
	if _, err := Project(nil, nil, d, d.AddDate(0, 0, MaxProjectionDays)); !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("expected ErrRangeTooLong, got %v", err)
	}
	if _, err := Project(nil, nil, d, d.AddDate(0, 0, MaxProjectionDays-1)); err != nil {
		t.Fatalf("expected max range to be accepted, got %v", err)
	}
}

func TestDay_Open(t *testing.T) {
	monday := date(2025, 10, 20)
	rules := []model.WeeklyRule{rule(0, "09:00", "11:00")}

	cases := []struct {
		name string
		excs []model.AvailabilityException
		want bool
	}{
		{"weekly only", nil, true},
		{"whole day cancel", []model.AvailabilityException{cancelOn(monday, false)}, false},
		{"window fully cancelled", []model.AvailabilityException{cancelOn(monday, false, "08:00", "12:00")}, false},
		{"window partly cancelled", []model.AvailabilityException{cancelOn(monday, false, "09:00", "10:00")}, true},
		{"cancelled but extra window", []model.AvailabilityException{
			cancelOn(monday, false, "08:00", "12:00"),
			addOn(monday, "15:00", "16:00"),
		}, true},
	}
	for _, tc := range cases {
		days, err := Project(rules, tc.excs, monday, monday)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got := days[0].Open(); got != tc.want {
			t.Fatalf("%s: expected Open=%v, got %v", tc.name, tc.want, got)
		}
	}
}
