package httpapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/service"
)

// optional отличает отсутствующее поле от явного null.
type optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// --- запросы

type weeklyItem struct {
	DayOfWeek   *int       `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime   string     `json:"start_time" validate:"required,clock"`
	EndTime     string     `json:"end_time" validate:"required,clock"`
	Service     *uuid.UUID `json:"service"`
	IsActive    *bool      `json:"is_active"`
	SlotMinutes int        `json:"slot_minutes" validate:"omitempty,min=5,max=480"`
	Capacity    int        `json:"capacity" validate:"omitempty,min=1,max=100"`
}

type weeklyUpsertRequest struct {
	Availabilities []weeklyItem `json:"availabilities" validate:"dive"`
}

type weeklyRange struct {
	DayOfWeek *int       `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string     `json:"start_time" validate:"required,clock"`
	EndTime   string     `json:"end_time" validate:"required,clock"`
	Service   *uuid.UUID `json:"service"`
}

type weeklyDeleteRequest struct {
	Availabilities []weeklyRange `json:"availabilities" validate:"required,min=1,dive"`
}

type exceptionItem struct {
	ID            *uuid.UUID          `json:"id"`
	Date          optional[string]    `json:"date"`
	ExceptionType optional[string]    `json:"exception_type"`
	StartTime     optional[string]    `json:"start_time"`
	EndTime       optional[string]    `json:"end_time"`
	Service       optional[uuid.UUID] `json:"service"`
	Note          optional[string]    `json:"note"`
	IsRecurring   optional[bool]      `json:"is_recurring"`
}

type exceptionUpsertRequest struct {
	Exceptions []exceptionItem `json:"exceptions"`
}

type exceptionKey struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	Date      string    `json:"date" validate:"required,date"`
	StartTime *string   `json:"start_time" validate:"omitempty,clock"`
	EndTime   *string   `json:"end_time" validate:"omitempty,clock"`
}

type exceptionDeleteRequest struct {
	Exceptions []exceptionKey `json:"exceptions" validate:"required,min=1,dive"`
}

type appointmentRequest struct {
	Expert   *uuid.UUID `json:"expert"`
	Client   *uuid.UUID `json:"client"`
	Date     string     `json:"date" validate:"required,date"`
	Time     string     `json:"time" validate:"required,clock"`
	Duration int        `json:"duration" validate:"omitempty,min=5,max=480"`
	Notes    string     `json:"notes" validate:"max=2000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// --- ответы

type weeklyRuleResponse struct {
	ID          uuid.UUID  `json:"id"`
	DayOfWeek   int        `json:"day_of_week"`
	DayDisplay  string     `json:"day_display"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	Service     *uuid.UUID `json:"service"`
	IsActive    bool       `json:"is_active"`
	SlotMinutes int        `json:"slot_minutes"`
	Capacity    int        `json:"capacity"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toWeeklyRule(r model.WeeklyRule) weeklyRuleResponse {
	out := weeklyRuleResponse{
		ID:          r.ID,
		DayOfWeek:   r.DayOfWeek,
		StartTime:   calendar.FormatClock(r.StartTime),
		EndTime:     calendar.FormatClock(r.EndTime),
		Service:     r.ServiceID,
		IsActive:    r.IsActive,
		SlotMinutes: r.SlotMinutes,
		Capacity:    r.Capacity,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.DayOfWeek >= 0 && r.DayOfWeek < len(dayNames) {
		out.DayDisplay = dayNames[r.DayOfWeek]
	}
	return out
}

func toWeeklyRules(rules []model.WeeklyRule) []weeklyRuleResponse {
	out := make([]weeklyRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toWeeklyRule(r))
	}
	return out
}

type exceptionResponse struct {
	ID            uuid.UUID  `json:"id"`
	Date          string     `json:"date"`
	ExceptionType string     `json:"exception_type"`
	StartTime     *string    `json:"start_time"`
	EndTime       *string    `json:"end_time"`
	Service       *uuid.UUID `json:"service"`
	Note          string     `json:"note"`
	IsRecurring   bool       `json:"is_recurring"`
	CreatedAt     time.Time  `json:"created_at"`
}

func clockString(c *datatypes.Time) *string {
	if c == nil {
		return nil
	}
	s := calendar.FormatClock(*c)
	return &s
}

func toException(e model.AvailabilityException) exceptionResponse {
	return exceptionResponse{
		ID:            e.ID,
		Date:          calendar.FormatDate(e.Day()),
		ExceptionType: string(e.Type),
		StartTime:     clockString(e.StartTime),
		EndTime:       clockString(e.EndTime),
		Service:       e.ServiceID,
		Note:          e.Note,
		IsRecurring:   e.IsRecurring,
		CreatedAt:     e.CreatedAt,
	}
}

func toExceptions(excs []model.AvailabilityException) []exceptionResponse {
	out := make([]exceptionResponse, 0, len(excs))
	for _, e := range excs {
		out = append(out, toException(e))
	}
	return out
}

type itemErrorResponse struct {
	Index   int               `json:"index"`
	ID      *uuid.UUID        `json:"id,omitempty"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func toItemErrors(errs []service.ItemError) []itemErrorResponse {
	out := make([]itemErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, itemErrorResponse{Index: e.Index, ID: e.ID, Error: e.Message, Details: e.Details})
	}
	return out
}

type dayResponse struct {
	Date               string               `json:"date"`
	WeeklyAvailability []weeklyRuleResponse `json:"weekly_availability"`
	Exceptions         []exceptionResponse  `json:"exceptions"`
	IsAvailable        bool                 `json:"is_available"`
	Slots              []string             `json:"slots"`
}

type calendarResponse struct {
	ExpertUserID uuid.UUID     `json:"expert_user_id"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	Calendar     []dayResponse `json:"calendar"`
}

func toCalendar(v service.CalendarView) calendarResponse {
	days := make([]dayResponse, 0, len(v.Days))
	for _, d := range v.Days {
		slots := make([]string, 0, len(d.Slots))
		for _, s := range d.Slots {
			slots = append(slots, calendar.FormatClock(s))
		}
		days = append(days, dayResponse{
			Date:               calendar.FormatDate(d.Date),
			WeeklyAvailability: toWeeklyRules(d.Weekly),
			Exceptions:         toExceptions(d.Exceptions),
			IsAvailable:        d.IsAvailable,
			Slots:              slots,
		})
	}
	return calendarResponse{
		ExpertUserID: v.ExpertUserID,
		StartDate:    calendar.FormatDate(v.StartDate),
		EndDate:      calendar.FormatDate(v.EndDate),
		Calendar:     days,
	}
}

type availableExpertResponse struct {
	ExpertUserID uuid.UUID `json:"expert_user_id"`
	Name         string    `json:"name"`
	About        string    `json:"about"`
	Category     string    `json:"category"`
}

type serviceResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	Description        string    `json:"description"`
	DefaultDurationMin *int64    `json:"default_duration_min"`
}

func toServices(items []model.Service) []serviceResponse {
	out := make([]serviceResponse, 0, len(items))
	for _, s := range items {
		out = append(out, serviceResponse{
			ID:                 s.ID,
			Name:               s.Name,
			Slug:               s.Slug,
			Description:        s.Description,
			DefaultDurationMin: s.DefaultDurationMin,
		})
	}
	return out
}

type appointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	Expert          uuid.UUID `json:"expert"`
	Client          uuid.UUID `json:"client"`
	ExpertName      string    `json:"expert_name"`
	ClientName      string    `json:"client_name"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Duration        int       `json:"duration"`
	IsConfirmed     bool      `json:"is_confirmed"`
	Notes           string    `json:"notes"`
	Status          string    `json:"status"`
	MeetingID       *string   `json:"meeting_id"`
	MeetingStartURL *string   `json:"meeting_start_url,omitempty"`
	MeetingJoinURL  *string   `json:"meeting_join_url"`
	IsDeleted       bool      `json:"is_deleted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// toAppointment: ссылка запуска встречи видна только эксперту и администратору.
func toAppointment(a *model.Appointment, viewer service.Actor) appointmentResponse {
	out := appointmentResponse{
		ID:             a.ID,
		Expert:         a.ExpertID,
		Client:         a.ClientID,
		ExpertName:     a.Expert.DisplayName(),
		ClientName:     a.Client.DisplayName(),
		Date:           calendar.FormatDate(time.Time(a.Date)),
		Time:           calendar.FormatClock(a.Time),
		Duration:       a.Duration,
		IsConfirmed:    a.IsConfirmed,
		Notes:          a.Notes,
		Status:         string(a.Status),
		MeetingID:      a.MeetingID,
		MeetingJoinURL: a.MeetingJoinURL,
		IsDeleted:      a.IsDeleted(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if viewer.UserID == a.ExpertID || viewer.IsAdmin() {
		out.MeetingStartURL = a.MeetingStartURL
	}
	return out
}

type appointmentListResponse struct {
	Items  []appointmentResponse `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type meetingResponse struct {
	MeetingID string `json:"meeting_id"`
	StartURL  string `json:"start_url,omitempty"`
	JoinURL   string `json:"join_url"`
}

type slotCheckResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
