package calendar

import (
	"errors"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/model"
)

// MaxProjectionDays — максимальная длина диапазона календаря.
const MaxProjectionDays = 92

var (
	ErrRangeOrder   = errors.New("start_date must not be after end_date")
	ErrRangeTooLong = errors.New("date range is too long")
)

// Day — проекция расписания эксперта на одну дату.
type Day struct {
	Date        time.Time
	Weekly      []model.WeeklyRule
	Exceptions  []model.AvailabilityException
	IsAvailable bool
	Slots       []datatypes.Time
}

// SlotVerdict — результат проверки конкретного слота.
type SlotVerdict string

const (
	SlotOK                 SlotVerdict = "ok"
	SlotNoWeeklyCoverage   SlotVerdict = "no_weekly_coverage"
	SlotDateException      SlotVerdict = "date_exception"
	SlotRecurringException SlotVerdict = "recurring_exception"
)

// ValidateRange проверяет диапазон дат [from, to] (включительно).
func ValidateRange(from, to time.Time) error {
	from, to = DateOf(from), DateOf(to)
	if from.After(to) {
		return ErrRangeOrder
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxProjectionDays {
		return ErrRangeTooLong
	}
	return nil
}

// Project строит по дню на каждую дату диапазона [from, to].
//
// В день попадают активные недельные правила его дня недели и исключения,
// приходящиеся на дату (включая ежегодные). День недоступен только при
// отмене на весь день.
func Project(rules []model.WeeklyRule, exceptions []model.AvailabilityException, from, to time.Time) ([]Day, error) {
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	from, to = DateOf(from), DateOf(to)

	byDay := make(map[int][]model.WeeklyRule, 7)
	for _, r := range rules {
		if r.IsActive {
			byDay[r.DayOfWeek] = append(byDay[r.DayOfWeek], r)
		}
	}
	for dow := range byDay {
		sort.SliceStable(byDay[dow], func(i, j int) bool {
			return byDay[dow][i].StartTime < byDay[dow][j].StartTime
		})
	}

	var days []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		weekly := byDay[model.Weekday(d)]
		if weekly == nil {
			weekly = []model.WeeklyRule{}
		}
		excs := ExceptionsOn(exceptions, d)

		day := Day{
			Date:        d,
			Weekly:      weekly,
			Exceptions:  excs,
			IsAvailable: !cancelledWholeDay(excs),
		}
		day.Slots = daySlots(d, weekly, excs, day.IsAvailable)
		days = append(days, day)
	}
	return days, nil
}

// ExceptionsOn возвращает исключения, действующие на дату.
func ExceptionsOn(exceptions []model.AvailabilityException, date time.Time) []model.AvailabilityException {
	out := []model.AvailabilityException{}
	for _, e := range exceptions {
		if OccursOn(&e, date) {
			out = append(out, e)
		}
	}
	return out
}

// OccursOn: совпадение по дате, а для ежегодных — по месяцу и дню.
// Ежегодное исключение на 29 февраля в невисокосные годы срабатывает 28-го.
func OccursOn(e *model.AvailabilityException, date time.Time) bool {
	orig := DateOf(e.Day())
	date = DateOf(date)
	if orig.Equal(date) {
		return true
	}
	if !e.IsRecurring {
		return false
	}
	return sameAnniversary(orig, date)
}

func sameAnniversary(orig, date time.Time) bool {
	if orig.Month() == time.February && orig.Day() == 29 && !isLeap(date.Year()) {
		return date.Month() == time.February && date.Day() == 28
	}
	return orig.Month() == date.Month() && orig.Day() == date.Day()
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func cancelledWholeDay(excs []model.AvailabilityException) bool {
	for _, e := range excs {
		if e.Type == model.ExceptionTypeCancel && e.WholeDay() {
			return true
		}
	}
	return false
}

// covers: отмена на весь день или интервал [start, end), содержащий at.
func covers(e *model.AvailabilityException, at datatypes.Time) bool {
	if e.WholeDay() {
		return true
	}
	if e.StartTime == nil || e.EndTime == nil {
		return false
	}
	return ClockRange{Start: *e.StartTime, End: *e.EndTime}.Contains(at)
}

// daySlots режет недельные окна и добавленные интервалы на слоты
// и выбрасывает слоты, начало которых попадает в отмену.
func daySlots(date time.Time, weekly []model.WeeklyRule, excs []model.AvailabilityException, available bool) []datatypes.Time {
	slots := []datatypes.Time{}
	if !available {
		return slots
	}

	type window struct {
		r       ClockRange
		minutes int
	}
	var windows []window
	for _, r := range weekly {
		windows = append(windows, window{ClockRange{r.StartTime, r.EndTime}, r.SlotMinutes})
	}
	for _, e := range excs {
		if e.Type == model.ExceptionTypeAdd && e.StartTime != nil && e.EndTime != nil {
			windows = append(windows, window{ClockRange{*e.StartTime, *e.EndTime}, model.DefaultSlotMinutes})
		}
	}

	seen := make(map[datatypes.Time]bool)
	for _, w := range windows {
		if w.minutes <= 0 {
			w.minutes = model.DefaultSlotMinutes
		}
		tr, err := NewTimeRange(At(date, w.r.Start, time.UTC), At(date, w.r.End, time.UTC))
		if err != nil {
			continue
		}
		parts, err := SplitToTimeSlots(tr, time.Duration(w.minutes)*time.Minute)
		if err != nil {
			continue
		}
		for _, p := range parts {
			at := datatypes.Time(p.Start.Sub(DateOf(date)))
			if seen[at] || cancelledAt(excs, at) {
				continue
			}
			seen[at] = true
			slots = append(slots, at)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

func cancelledAt(excs []model.AvailabilityException, at datatypes.Time) bool {
	for i := range excs {
		if excs[i].Type == model.ExceptionTypeCancel && covers(&excs[i], at) {
			return true
		}
	}
	return false
}

// CheckSlot проверяет, доступен ли слот (date, at):
//  1. должно существовать активное недельное правило дня недели, покрывающее at;
//  2. отмена на эту дату (весь день или интервал с at) запрещает слот;
//  3. то же для ежегодных отмен, совпадающих по месяцу и дню.
//
// Добавленные интервалы (add) доступность слота не дают.
func CheckSlot(rules []model.WeeklyRule, exceptions []model.AvailabilityException, date time.Time, at datatypes.Time) SlotVerdict {
	date = DateOf(date)
	dow := model.Weekday(date)

	covered := false
	for _, r := range rules {
		if r.IsActive && r.DayOfWeek == dow && (ClockRange{r.StartTime, r.EndTime}).Contains(at) {
			covered = true
			break
		}
	}
	if !covered {
		return SlotNoWeeklyCoverage
	}

	for i := range exceptions {
		e := &exceptions[i]
		if e.Type != model.ExceptionTypeCancel || e.IsRecurring {
			continue
		}
		if DateOf(e.Day()).Equal(date) && covers(e, at) {
			return SlotDateException
		}
	}

	for i := range exceptions {
		e := &exceptions[i]
		if e.Type != model.ExceptionTypeCancel || !e.IsRecurring {
			continue
		}
		if OccursOn(e, date) && covers(e, at) {
			return SlotRecurringException
		}
	}

	return SlotOK
}

// Open — в день есть хотя бы одно окно: недельное правило, не перекрытое
// отменой целиком, или добавленный интервал.
func (d Day) Open() bool {
	if !d.IsAvailable {
		return false
	}
	for _, e := range d.Exceptions {
		if e.Type == model.ExceptionTypeAdd {
			return true
		}
	}
	for _, r := range d.Weekly {
		if !coveredByCancel(r, d.Exceptions) {
			return true
		}
	}
	return false
}

func coveredByCancel(r model.WeeklyRule, excs []model.AvailabilityException) bool {
	for _, e := range excs {
		if e.Type != model.ExceptionTypeCancel || e.StartTime == nil || e.EndTime == nil {
			continue
		}
		if *e.StartTime <= r.StartTime && *e.EndTime >= r.EndTime {
			return true
		}
	}
	return false
}
