package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

// WeeklyRuleInput — элемент пакетного добавления недельных окон.
type WeeklyRuleInput struct {
	DayOfWeek int
	StartTime datatypes.Time
	EndTime   datatypes.Time
	ServiceID *uuid.UUID
	// nil — активно
	IsActive *bool
	// 0 — значения по умолчанию
	SlotMinutes int
	Capacity    int
}

// WeeklyRangeInput — элемент пакетного удаления интервалов.
type WeeklyRangeInput struct {
	DayOfWeek int
	StartTime datatypes.Time
	EndTime   datatypes.Time
	ServiceID *uuid.UUID
}

type UpsertWeeklyResult struct {
	Added        []model.WeeklyRule
	Updated      []model.WeeklyRule
	DeletedCount int
	Current      []model.WeeklyRule
}

type DeleteWeeklyResult struct {
	DeletedCount int
	Deleted      []model.WeeklyRule
	Current      []model.WeeklyRule
}

// AvailabilityService управляет недельным расписанием эксперта.
type AvailabilityService struct {
	store  *repository.Store
	cache  *CalendarCache
	logger *slog.Logger
	newID  func() uuid.UUID
}

func NewAvailabilityService(store *repository.Store, cc *CalendarCache, logger *slog.Logger) *AvailabilityService {
	if cc == nil {
		cc = NewCalendarCache(nil, 0, logger)
	}
	return &AvailabilityService{
		store:  store,
		cache:  cc,
		logger: logger,
		newID:  uuid.New,
	}
}

// ListWeekly возвращает все правила эксперта, выполняющего запрос.
func (s *AvailabilityService) ListWeekly(ctx context.Context, actor Actor) ([]model.WeeklyRule, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return nil, err
	}
	return s.store.WeeklyRules.ListByExpert(ctx, expertID)
}

// ExpertWeekly — активные правила эксперта по его пользователю (публичная сводка).
func (s *AvailabilityService) ExpertWeekly(ctx context.Context, expertUserID uuid.UUID) ([]model.WeeklyRule, error) {
	expert, err := s.store.Experts.GetByUserID(ctx, expertUserID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.store.WeeklyRules.ListActiveByExpert(ctx, expert.ID)
}

func validateWeeklyBounds(v *ValidationError, prefix string, day int, start, end datatypes.Time) {
	if day < 0 || day > 6 {
		v.add(prefix+".day_of_week", "must be between 0 and 6")
	}
	if !(calendar.ClockRange{Start: start, End: end}).Valid() {
		v.add(prefix+".end_time", "must be after start_time")
	}
}

// checkServices проверяет, что все указанные услуги существуют.
func (s *AvailabilityService) checkServices(ctx context.Context, v *ValidationError, refs map[string]*uuid.UUID) error {
	var ids []uuid.UUID
	for _, id := range refs {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.Services.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("check services: %w", err)
	}
	for field, id := range refs {
		if id != nil && !found[*id] {
			v.add(field, "unknown service")
		}
	}
	return nil
}

// UpsertWeekly сливает пакет окон с текущими правилами эксперта одной транзакцией.
func (s *AvailabilityService) UpsertWeekly(ctx context.Context, actor Actor, items []WeeklyRuleInput) (UpsertWeeklyResult, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return UpsertWeeklyResult{}, err
	}
	logger := logging.FromContext(ctx, s.logger).With("service", "availability", "operation", "upsert_weekly", "expert_id", expertID)

	if len(items) == 0 {
		current, err := s.store.WeeklyRules.ListByExpert(ctx, expertID)
		if err != nil {
			return UpsertWeeklyResult{}, err
		}
		return UpsertWeeklyResult{Added: []model.WeeklyRule{}, Updated: []model.WeeklyRule{}, Current: current}, nil
	}

	v := &ValidationError{}
	refs := make(map[string]*uuid.UUID)
	candidates := make([]model.WeeklyRule, 0, len(items))
	for i, in := range items {
		prefix := fmt.Sprintf("availabilities[%d]", i)
		validateWeeklyBounds(v, prefix, in.DayOfWeek, in.StartTime, in.EndTime)

		rule := model.WeeklyRule{
			ExpertID:    expertID,
			DayOfWeek:   in.DayOfWeek,
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
			ServiceID:   in.ServiceID,
			IsActive:    true,
			SlotMinutes: in.SlotMinutes,
			Capacity:    in.Capacity,
		}
		if in.IsActive != nil {
			rule.IsActive = *in.IsActive
		}
		if rule.SlotMinutes == 0 {
			rule.SlotMinutes = model.DefaultSlotMinutes
		}
		if rule.Capacity == 0 {
			rule.Capacity = model.DefaultCapacity
		}
		if rule.SlotMinutes < 0 {
			v.add(prefix+".slot_minutes", "must be positive")
		}
		if rule.Capacity < 1 {
			v.add(prefix+".capacity", "must be at least 1")
		}
		refs[prefix+".service"] = in.ServiceID
		candidates = append(candidates, rule)
	}
	if err := s.checkServices(ctx, v, refs); err != nil {
		return UpsertWeeklyResult{}, err
	}
	if err := v.orNil(); err != nil {
		return UpsertWeeklyResult{}, err
	}

	var res UpsertWeeklyResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Experts.Lock(ctx, expertID); err != nil {
			return notFound(err)
		}
		snapshot, err := tx.WeeklyRules.ListByExpert(ctx, expertID)
		if err != nil {
			return err
		}

		diff := calendar.MergeWeekly(snapshot, candidates, s.newID)
		if err := tx.WeeklyRules.Apply(ctx, diff.Deleted, diff.Updated, diff.Added); err != nil {
			return fmt.Errorf("apply weekly diff: %w", err)
		}

		current, err := tx.WeeklyRules.ListByExpert(ctx, expertID)
		if err != nil {
			return err
		}
		res = UpsertWeeklyResult{
			Added:        nonNil(diff.Added),
			Updated:      nonNil(diff.Updated),
			DeletedCount: len(diff.Deleted),
			Current:      current,
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "weekly upsert failed", "error", err)
		return UpsertWeeklyResult{}, err
	}

	s.cache.Invalidate(ctx, expertID)
	logger.InfoContext(ctx, "weekly rules merged",
		"added", len(res.Added), "updated", len(res.Updated), "deleted", res.DeletedCount)
	return res, nil
}

// DeleteWeekly вырезает интервалы из правил эксперта одной транзакцией.
func (s *AvailabilityService) DeleteWeekly(ctx context.Context, actor Actor, items []WeeklyRangeInput) (DeleteWeeklyResult, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return DeleteWeeklyResult{}, err
	}
	logger := logging.FromContext(ctx, s.logger).With("service", "availability", "operation", "delete_weekly", "expert_id", expertID)

	if len(items) == 0 {
		return DeleteWeeklyResult{}, invalid("availabilities", "must be a non-empty list")
	}

	v := &ValidationError{}
	deletions := make([]calendar.RangeDeletion, 0, len(items))
	for i, in := range items {
		validateWeeklyBounds(v, fmt.Sprintf("availabilities[%d]", i), in.DayOfWeek, in.StartTime, in.EndTime)
		deletions = append(deletions, calendar.RangeDeletion{
			DayOfWeek: in.DayOfWeek,
			Start:     in.StartTime,
			End:       in.EndTime,
			ServiceID: in.ServiceID,
		})
	}
	if err := v.orNil(); err != nil {
		return DeleteWeeklyResult{}, err
	}

	var res DeleteWeeklyResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Experts.Lock(ctx, expertID); err != nil {
			return notFound(err)
		}
		snapshot, err := tx.WeeklyRules.ListByExpert(ctx, expertID)
		if err != nil {
			return err
		}

		diff := calendar.SubtractWeekly(snapshot, deletions, s.newID)
		if err := tx.WeeklyRules.Apply(ctx, diff.Deleted, diff.Updated, diff.Added); err != nil {
			return fmt.Errorf("apply weekly diff: %w", err)
		}

		current, err := tx.WeeklyRules.ListByExpert(ctx, expertID)
		if err != nil {
			return err
		}
		res = DeleteWeeklyResult{
			DeletedCount: len(diff.Affected),
			Deleted:      nonNil(diff.Affected),
			Current:      current,
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "weekly delete failed", "error", err)
		return DeleteWeeklyResult{}, err
	}

	s.cache.Invalidate(ctx, expertID)
	logger.InfoContext(ctx, "weekly ranges removed", "deleted", res.DeletedCount)
	return res, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
