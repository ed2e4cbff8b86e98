package calendar

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/model"
)

// WeeklyDiff — результат пакетной операции над недельными правилами.
// Применяется в порядке Deleted → Updated → Added.
type WeeklyDiff struct {
	// Новые правила в итоговом состоянии.
	Added []model.WeeklyRule
	// Сохранённые правила, у которых поменялись границы.
	Updated []model.WeeklyRule
	// Сохранённые правила, которые нужно удалить (состояние до операции).
	Deleted []model.WeeklyRule
	// Все правила, затронутые удалением интервала, в состоянии до изменения.
	Affected []model.WeeklyRule
}

// RangeDeletion — интервал, вырезаемый из недельных правил одного дня.
type RangeDeletion struct {
	DayOfWeek int
	Start     datatypes.Time
	End       datatypes.Time
	ServiceID *uuid.UUID
}

// workingSet — рабочая копия правил эксперта, над которой последовательно
// применяются элементы пакета.
type workingSet struct {
	rules     []*model.WeeklyRule
	persisted map[uuid.UUID]model.WeeklyRule
	dirty     map[uuid.UUID]bool
	removed   map[uuid.UUID]bool
	newID     func() uuid.UUID
}

func newWorkingSet(snapshot []model.WeeklyRule, newID func() uuid.UUID) *workingSet {
	if newID == nil {
		newID = uuid.New
	}
	ws := &workingSet{
		persisted: make(map[uuid.UUID]model.WeeklyRule, len(snapshot)),
		dirty:     make(map[uuid.UUID]bool),
		removed:   make(map[uuid.UUID]bool),
		newID:     newID,
	}
	for i := range snapshot {
		r := snapshot[i]
		ws.persisted[r.ID] = r
		ws.rules = append(ws.rules, &r)
	}
	return ws
}

func (ws *workingSet) live() []*model.WeeklyRule {
	out := make([]*model.WeeklyRule, 0, len(ws.rules))
	for _, r := range ws.rules {
		if !ws.removed[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (ws *workingSet) add(r model.WeeklyRule) *model.WeeklyRule {
	r.ID = ws.newID()
	r.Expert = nil
	r.Service = nil
	ws.rules = append(ws.rules, &r)
	return &r
}

func (ws *workingSet) remove(r *model.WeeklyRule) {
	ws.removed[r.ID] = true
}

func (ws *workingSet) touch(r *model.WeeklyRule) {
	ws.dirty[r.ID] = true
}

func (ws *workingSet) diff() WeeklyDiff {
	var d WeeklyDiff
	for _, r := range ws.rules {
		orig, isPersisted := ws.persisted[r.ID]
		switch {
		case ws.removed[r.ID] && isPersisted:
			d.Deleted = append(d.Deleted, orig)
		case ws.removed[r.ID]:
			// создано и удалено в рамках одного пакета
		case !isPersisted:
			d.Added = append(d.Added, *r)
		case ws.dirty[r.ID]:
			d.Updated = append(d.Updated, *r)
		}
	}
	return d
}

func ruleRange(r *model.WeeklyRule) ClockRange {
	return ClockRange{Start: r.StartTime, End: r.EndTime}
}

// MergeWeekly применяет пакет кандидатов к снимку правил эксперта.
//
// Кандидат поглощает все правила той же сигнатуры, которые пересекаются
// или соприкасаются с объединённым интервалом, пока объединение растёт.
// Первое найденное правило расширяется до объединения, остальные удаляются.
// Если совпадений нет, кандидат добавляется как новое правило.
// Правила, созданные ранее в пакете, видны следующим кандидатам.
func MergeWeekly(snapshot, candidates []model.WeeklyRule, newID func() uuid.UUID) WeeklyDiff {
	ws := newWorkingSet(snapshot, newID)

	for i := range candidates {
		c := candidates[i]
		sig := c.Signature()
		lo, hi := c.StartTime, c.EndTime

		var matched []*model.WeeklyRule
		seen := make(map[uuid.UUID]bool)
		for grown := true; grown; {
			grown = false
			for _, r := range ws.live() {
				if seen[r.ID] || r.Signature() != sig || !ruleRange(r).Overlaps(ClockRange{Start: lo, End: hi}, true) {
					continue
				}
				seen[r.ID] = true
				matched = append(matched, r)
				if r.StartTime < lo {
					lo = r.StartTime
				}
				if r.EndTime > hi {
					hi = r.EndTime
				}
				grown = true
			}
		}

		if len(matched) == 0 {
			ws.add(c)
			continue
		}

		survivor := matched[0]
		survivor.StartTime = lo
		survivor.EndTime = hi
		ws.touch(survivor)
		for _, r := range matched[1:] {
			ws.remove(r)
		}
	}

	return ws.diff()
}

// SubtractWeekly вырезает интервалы из недельных правил.
//
// Для каждого правила того же дня и той же услуги:
// нет пересечения — без изменений; интервал покрывает правило — удаление;
// интервал строго внутри — правило делится на два новых, исходное удаляется;
// интервал срезает начало или конец — граница сдвигается.
// Каждое удаление работает с результатом предыдущих.
func SubtractWeekly(snapshot []model.WeeklyRule, deletions []RangeDeletion, newID func() uuid.UUID) WeeklyDiff {
	ws := newWorkingSet(snapshot, newID)
	var affected []model.WeeklyRule

	for _, del := range deletions {
		for _, r := range ws.live() {
			if r.DayOfWeek != del.DayOfWeek || !model.SameService(r.ServiceID, del.ServiceID) {
				continue
			}
			if !ruleRange(r).Overlaps(ClockRange{Start: del.Start, End: del.End}, false) {
				continue
			}

			before := *r
			before.Expert = nil
			before.Service = nil
			affected = append(affected, before)

			switch {
			case del.Start <= r.StartTime && del.End >= r.EndTime:
				ws.remove(r)
			case del.Start > r.StartTime && del.End < r.EndTime:
				left, right := before, before
				left.EndTime = del.Start
				right.StartTime = del.End
				ws.remove(r)
				ws.add(left)
				ws.add(right)
			case del.Start <= r.StartTime:
				r.StartTime = del.End
				ws.touch(r)
			default:
				r.EndTime = del.Start
				ws.touch(r)
			}
		}
	}

	d := ws.diff()
	d.Affected = affected
	return d
}
