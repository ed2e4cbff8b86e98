package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/service"
)

const maxBodyBytes = 1 << 20

var errSingleObject = errors.New("body must contain a single JSON object")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errSingleObject
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// queryDate: пустой параметр — nil без ошибки.
func queryDate(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return &d, nil
}

func queryUUID(q url.Values, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", name)
	}
	return &id, nil
}

func queryInt(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func queryBool(q url.Values, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(q.Get(name)))
	return err == nil && v
}

// mustClock вызывается после проверки тегом clock.
func mustClock(s string) datatypes.Time {
	c, _ := calendar.ParseClock(s)
	return c
}

func toWeeklyInputs(items []weeklyItem) []service.WeeklyRuleInput {
	out := make([]service.WeeklyRuleInput, 0, len(items))
	for _, it := range items {
		out = append(out, service.WeeklyRuleInput{
			DayOfWeek:   *it.DayOfWeek,
			StartTime:   mustClock(it.StartTime),
			EndTime:     mustClock(it.EndTime),
			ServiceID:   it.Service,
			IsActive:    it.IsActive,
			SlotMinutes: it.SlotMinutes,
			Capacity:    it.Capacity,
		})
	}
	return out
}

func toWeeklyRanges(items []weeklyRange) []service.WeeklyRangeInput {
	out := make([]service.WeeklyRangeInput, 0, len(items))
	for _, it := range items {
		out = append(out, service.WeeklyRangeInput{
			DayOfWeek: *it.DayOfWeek,
			StartTime: mustClock(it.StartTime),
			EndTime:   mustClock(it.EndTime),
			ServiceID: it.Service,
		})
	}
	return out
}

func optionalClock(o optional[string]) (service.Field[*datatypes.Time], error) {
	if !o.Set {
		return service.Field[*datatypes.Time]{}, nil
	}
	if o.Null {
		return service.Some[*datatypes.Time](nil), nil
	}
	c, err := calendar.ParseClock(o.Value)
	if err != nil {
		return service.Field[*datatypes.Time]{}, err
	}
	return service.Some(&c), nil
}

// toExceptionInput переносит переданные поля; явный null очищает значение.
func toExceptionInput(it exceptionItem, prefix string, details map[string]string) service.ExceptionInput {
	in := service.ExceptionInput{ID: it.ID}

	if it.Date.Set {
		var d time.Time
		if !it.Date.Null {
			parsed, err := calendar.ParseDate(it.Date.Value)
			if err != nil {
				details[prefix+".date"] = "date"
			}
			d = parsed
		}
		in.Date = service.Some(d)
	}
	if it.ExceptionType.Set {
		in.Type = service.Some(model.ExceptionType(it.ExceptionType.Value))
	}

	var err error
	if in.StartTime, err = optionalClock(it.StartTime); err != nil {
		details[prefix+".start_time"] = "clock"
	}
	if in.EndTime, err = optionalClock(it.EndTime); err != nil {
		details[prefix+".end_time"] = "clock"
	}

	if it.Service.Set {
		if it.Service.Null {
			in.ServiceID = service.Some[*uuid.UUID](nil)
		} else {
			id := it.Service.Value
			in.ServiceID = service.Some(&id)
		}
	}
	if it.Note.Set {
		in.Note = service.Some(it.Note.Value)
	}
	if it.IsRecurring.Set {
		in.IsRecurring = service.Some(it.IsRecurring.Value)
	}
	return in
}

func toExceptionKeys(items []exceptionKey) []service.ExceptionKey {
	out := make([]service.ExceptionKey, 0, len(items))
	for _, it := range items {
		d, _ := calendar.ParseDate(it.Date)
		key := service.ExceptionKey{ID: it.ID, Date: d}
		if it.StartTime != nil {
			c := mustClock(*it.StartTime)
			key.StartTime = &c
		}
		if it.EndTime != nil {
			c := mustClock(*it.EndTime)
			key.EndTime = &c
		}
		out = append(out, key)
	}
	return out
}
