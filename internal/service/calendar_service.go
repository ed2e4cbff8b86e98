package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

const defaultCalendarSpanDays = 5

// CalendarView — проекция расписания эксперта за диапазон дат.
type CalendarView struct {
	ExpertUserID uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
	Days         []calendar.Day
}

// SlotCheck — результат проверки слота.
type SlotCheck struct {
	Available bool
	Reason    string
}

// AvailableExpert — эксперт с хотя бы одним открытым днём в диапазоне.
type AvailableExpert struct {
	ExpertUserID uuid.UUID
	Name         string
	About        string
	Service      string
}

// CalendarService строит календарь эксперта из недельных правил и исключений.
type CalendarService struct {
	store  *repository.Store
	cache  *CalendarCache
	logger *slog.Logger
	now    func() time.Time
}

func NewCalendarService(store *repository.Store, cc *CalendarCache, logger *slog.Logger) *CalendarService {
	if cc == nil {
		cc = NewCalendarCache(nil, 0, logger)
	}
	return &CalendarService{store: store, cache: cc, logger: logger, now: time.Now}
}

// resolveRange применяет диапазон по умолчанию: сегодня ±5 дней.
func (s *CalendarService) resolveRange(from, to *time.Time) (time.Time, time.Time, error) {
	if from == nil || to == nil {
		today := calendar.DateOf(s.now().UTC())
		return today.AddDate(0, 0, -defaultCalendarSpanDays), today.AddDate(0, 0, defaultCalendarSpanDays), nil
	}
	start, end := calendar.DateOf(*from), calendar.DateOf(*to)
	if err := calendar.ValidateRange(start, end); err != nil {
		field := "start_date"
		if errors.Is(err, calendar.ErrRangeTooLong) {
			field = "end_date"
		}
		return time.Time{}, time.Time{}, invalid(field, err.Error())
	}
	return start, end, nil
}

// targetExpert: эксперт смотрит свой календарь, остальные указывают expert_user_id.
func (s *CalendarService) targetExpert(ctx context.Context, actor Actor, expertUserID *uuid.UUID) (*model.ExpertProfile, error) {
	if actor.IsExpert() && expertUserID == nil {
		if actor.ExpertID == nil {
			return nil, ErrForbidden
		}
		expert, err := s.store.Experts.GetByID(ctx, *actor.ExpertID)
		if err != nil {
			return nil, notFound(err)
		}
		return expert, nil
	}
	if expertUserID == nil {
		return nil, invalid("expert_user_id", "required")
	}
	expert, err := s.store.Experts.GetByUserID(ctx, *expertUserID)
	if err != nil {
		return nil, notFound(err)
	}
	return expert, nil
}

// Calendar возвращает по дню на каждую дату диапазона.
func (s *CalendarService) Calendar(ctx context.Context, actor Actor, expertUserID *uuid.UUID, from, to *time.Time) (CalendarView, error) {
	start, end, err := s.resolveRange(from, to)
	if err != nil {
		return CalendarView{}, err
	}
	expert, err := s.targetExpert(ctx, actor, expertUserID)
	if err != nil {
		return CalendarView{}, err
	}

	key := s.cache.Key(ctx, expert.ID, calendar.FormatDate(start), calendar.FormatDate(end))
	var view CalendarView
	if s.cache.Load(ctx, key, &view) {
		return view, nil
	}

	rules, err := s.store.WeeklyRules.ListActiveByExpert(ctx, expert.ID)
	if err != nil {
		return CalendarView{}, err
	}
	excs, err := s.store.Exceptions.ListByExpert(ctx, expert.ID, start, end)
	if err != nil {
		return CalendarView{}, err
	}
	days, err := calendar.Project(rules, excs, start, end)
	if err != nil {
		return CalendarView{}, invalid("start_date", err.Error())
	}

	view = CalendarView{ExpertUserID: expert.UserID, StartDate: start, EndDate: end, Days: days}
	s.cache.Store(ctx, key, view)
	return view, nil
}

// CheckAvailability проверяет слот эксперта (пользователь expertUserID) на дату и время.
func (s *CalendarService) CheckAvailability(ctx context.Context, expertUserID uuid.UUID, date time.Time, at datatypes.Time) (SlotCheck, error) {
	expert, err := s.store.Experts.GetByUserID(ctx, expertUserID)
	if err != nil {
		return SlotCheck{}, notFound(err)
	}
	return checkSlot(ctx, s.store, expert.ID, date, at)
}

// checkSlot работает на переданном store, чтобы вызываться внутри транзакции.
func checkSlot(ctx context.Context, store *repository.Store, expertID uuid.UUID, date time.Time, at datatypes.Time) (SlotCheck, error) {
	date = calendar.DateOf(date)
	rules, err := store.WeeklyRules.ListActiveByExpert(ctx, expertID)
	if err != nil {
		return SlotCheck{}, fmt.Errorf("load weekly rules: %w", err)
	}
	excs, err := store.Exceptions.ListByExpert(ctx, expertID, date, date)
	if err != nil {
		return SlotCheck{}, fmt.Errorf("load exceptions: %w", err)
	}

	verdict := calendar.CheckSlot(rules, excs, date, at)
	if verdict == calendar.SlotOK {
		return SlotCheck{Available: true}, nil
	}
	return SlotCheck{Available: false, Reason: string(verdict)}, nil
}

// AvailableExperts — эксперты услуги serviceSlug, у которых есть открытый день в диапазоне.
func (s *CalendarService) AvailableExperts(ctx context.Context, serviceSlug string, from, to time.Time, page, pageSize int) (calendar.Page[AvailableExpert], error) {
	logger := logging.FromContext(ctx, s.logger).With("service", "calendar", "operation", "available_experts")

	if serviceSlug == "" {
		return calendar.Page[AvailableExpert]{}, invalid("service", "required")
	}
	from, to = calendar.DateOf(from), calendar.DateOf(to)
	if from.After(to) {
		from, to = to, from
	}
	if err := calendar.ValidateRange(from, to); err != nil {
		return calendar.Page[AvailableExpert]{}, invalid("end_date", err.Error())
	}

	svc, err := s.store.Services.GetBySlug(ctx, serviceSlug)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return calendar.Paginate([]AvailableExpert{}, page, pageSize), nil
		}
		return calendar.Page[AvailableExpert]{}, err
	}

	experts, err := s.store.Experts.ListByService(ctx, svc.ID)
	if err != nil {
		return calendar.Page[AvailableExpert]{}, err
	}
	ids := make([]uuid.UUID, len(experts))
	for i, e := range experts {
		ids[i] = e.ID
	}
	rulesByExpert, err := s.store.WeeklyRules.ListActiveByExperts(ctx, ids)
	if err != nil {
		return calendar.Page[AvailableExpert]{}, err
	}
	excsByExpert, err := s.store.Exceptions.ListByExperts(ctx, ids, from, to)
	if err != nil {
		return calendar.Page[AvailableExpert]{}, err
	}

	out := []AvailableExpert{}
	for _, e := range experts {
		rules := rulesByExpert[e.ID]
		if len(rules) == 0 {
			continue
		}
		days, err := calendar.Project(rules, excsByExpert[e.ID], from, to)
		if err != nil {
			return calendar.Page[AvailableExpert]{}, err
		}
		for _, d := range days {
			if d.Open() {
				out = append(out, AvailableExpert{
					ExpertUserID: e.UserID,
					Name:         e.User.DisplayName(),
					About:        e.About,
					Service:      svc.Slug,
				})
				break
			}
		}
	}

	logger.DebugContext(ctx, "available experts computed", "service", svc.Slug, "candidates", len(experts), "available", len(out))
	return calendar.Paginate(out, page, pageSize), nil
}

// Services — каталог активных услуг, по slug которых ищутся эксперты.
func (s *CalendarService) Services(ctx context.Context, page, pageSize int) (calendar.Page[model.Service], error) {
	page, pageSize, offset := calendar.PageBounds(page, pageSize)
	items, total, err := s.store.Services.List(ctx, true, pageSize, offset)
	if err != nil {
		return calendar.Page[model.Service]{}, fmt.Errorf("list services: %w", err)
	}
	return calendar.PageOf(items, page, pageSize, int(total)), nil
}
