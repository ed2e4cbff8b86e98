package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

// Field — значение поля частичного обновления; Set — поле передано явно (возможно, null).
type Field[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// ExceptionInput — элемент пакетного сохранения исключений.
// С ID — частичное обновление своей записи, без ID — создание.
type ExceptionInput struct {
	ID          *uuid.UUID
	Date        Field[time.Time]
	Type        Field[model.ExceptionType]
	StartTime   Field[*datatypes.Time]
	EndTime     Field[*datatypes.Time]
	ServiceID   Field[*uuid.UUID]
	Note        Field[string]
	IsRecurring Field[bool]
}

// ExceptionKey — точное совпадение для удаления.
type ExceptionKey struct {
	ID        uuid.UUID
	Date      time.Time
	StartTime *datatypes.Time
	EndTime   *datatypes.Time
}

// ItemError — ошибка одного элемента пакета.
type ItemError struct {
	Index   int
	ID      *uuid.UUID
	Message string
	Details map[string]string
}

type UpsertExceptionsResult struct {
	Created []model.AvailabilityException
	Updated []model.AvailabilityException
	Errors  []ItemError
	Current []model.AvailabilityException
}

type DeleteExceptionsResult struct {
	DeletedCount int
	Deleted      []model.AvailabilityException
	Errors       []ItemError
	Current      []model.AvailabilityException
}

// ExceptionService — реестр датированных исключений эксперта.
type ExceptionService struct {
	store  *repository.Store
	cache  *CalendarCache
	logger *slog.Logger
}

func NewExceptionService(store *repository.Store, cc *CalendarCache, logger *slog.Logger) *ExceptionService {
	if cc == nil {
		cc = NewCalendarCache(nil, 0, logger)
	}
	return &ExceptionService{store: store, cache: cc, logger: logger}
}

// List возвращает исключения эксперта; нулевые from/to — без ограничения.
func (s *ExceptionService) List(ctx context.Context, actor Actor, from, to time.Time) ([]model.AvailabilityException, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, invalid("start_date", "must not be after end_date")
	}
	return s.store.Exceptions.ListByExpert(ctx, expertID, from, to)
}

// validateException проверяет итоговое состояние записи.
func validateException(e *model.AvailabilityException) *ValidationError {
	v := &ValidationError{}
	if time.Time(e.Date).IsZero() {
		v.add("date", "required")
	}
	if !e.Type.Valid() {
		v.add("exception_type", "must be cancel or add")
	}
	hasStart, hasEnd := e.StartTime != nil, e.EndTime != nil
	switch {
	case e.Type == model.ExceptionTypeAdd && (!hasStart || !hasEnd):
		v.add("start_time", "start_time and end_time are required for add")
	case hasStart != hasEnd:
		v.add("end_time", "start_time and end_time must be set together")
	case hasStart && !(calendar.ClockRange{Start: *e.StartTime, End: *e.EndTime}).Valid():
		v.add("end_time", "must be after start_time")
	}
	if len(e.Note) > 255 {
		v.add("note", "must be at most 255 characters")
	}
	return v
}

func applyExceptionInput(e *model.AvailabilityException, in ExceptionInput) {
	if in.Date.Set {
		e.Date = datatypes.Date(calendar.DateOf(in.Date.Value))
	}
	if in.Type.Set {
		e.Type = in.Type.Value
	}
	if in.StartTime.Set {
		e.StartTime = in.StartTime.Value
	}
	if in.EndTime.Set {
		e.EndTime = in.EndTime.Value
	}
	if in.ServiceID.Set {
		e.ServiceID = in.ServiceID.Value
	}
	if in.Note.Set {
		e.Note = in.Note.Value
	}
	if in.IsRecurring.Set {
		e.IsRecurring = in.IsRecurring.Value
	}
}

// BulkUpsert создаёт и обновляет исключения одной транзакцией.
// Ошибочные элементы попадают в Errors, остальные сохраняются.
func (s *ExceptionService) BulkUpsert(ctx context.Context, actor Actor, items []ExceptionInput) (UpsertExceptionsResult, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return UpsertExceptionsResult{}, err
	}
	logger := logging.FromContext(ctx, s.logger).With("service", "exceptions", "operation", "bulk_upsert", "expert_id", expertID)

	res := UpsertExceptionsResult{
		Created: []model.AvailabilityException{},
		Updated: []model.AvailabilityException{},
		Errors:  []ItemError{},
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		for i, in := range items {
			var target model.AvailabilityException
			if in.ID != nil {
				existing, err := tx.Exceptions.GetByID(ctx, *in.ID)
				if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && existing.ExpertID != expertID) {
					res.Errors = append(res.Errors, ItemError{Index: i, ID: in.ID, Message: "exception not found"})
					continue
				}
				if err != nil {
					return err
				}
				target = *existing
			} else {
				target = model.AvailabilityException{ExpertID: expertID}
			}

			applyExceptionInput(&target, in)
			v := validateException(&target)
			if target.ServiceID != nil {
				found, err := tx.Services.ExistingIDs(ctx, []uuid.UUID{*target.ServiceID})
				if err != nil {
					return err
				}
				if !found[*target.ServiceID] {
					v.add("service", "unknown service")
				}
			}
			if v.HasErrors() {
				res.Errors = append(res.Errors, ItemError{Index: i, ID: in.ID, Message: "validation failed", Details: v.Fields})
				continue
			}

			if in.ID != nil {
				if err := tx.Exceptions.Save(ctx, &target); err != nil {
					return fmt.Errorf("update exception %s: %w", target.ID, err)
				}
				res.Updated = append(res.Updated, target)
			} else {
				if err := tx.Exceptions.Create(ctx, &target); err != nil {
					return fmt.Errorf("create exception: %w", err)
				}
				res.Created = append(res.Created, target)
			}
		}

		current, err := tx.Exceptions.ListByExpert(ctx, expertID, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		res.Current = current
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "exception upsert failed", "error", err)
		return UpsertExceptionsResult{}, err
	}

	if len(res.Created)+len(res.Updated) > 0 {
		s.cache.Invalidate(ctx, expertID)
	}
	logger.InfoContext(ctx, "exceptions saved",
		"created", len(res.Created), "updated", len(res.Updated), "errors", len(res.Errors))
	return res, nil
}

// BulkDelete удаляет исключения, точно совпавшие по id, дате и границам.
func (s *ExceptionService) BulkDelete(ctx context.Context, actor Actor, keys []ExceptionKey) (DeleteExceptionsResult, error) {
	expertID, err := actor.ExpertProfileID()
	if err != nil {
		return DeleteExceptionsResult{}, err
	}
	if len(keys) == 0 {
		return DeleteExceptionsResult{}, invalid("exceptions", "must be a non-empty list")
	}
	logger := logging.FromContext(ctx, s.logger).With("service", "exceptions", "operation", "bulk_delete", "expert_id", expertID)

	res := DeleteExceptionsResult{
		Deleted: []model.AvailabilityException{},
		Errors:  []ItemError{},
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		for i, k := range keys {
			id := k.ID
			found, err := tx.Exceptions.FindExact(ctx, expertID, k.ID, calendar.DateOf(k.Date), k.StartTime, k.EndTime)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				res.Errors = append(res.Errors, ItemError{Index: i, ID: &id, Message: "no exception matches id, date and time"})
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Exceptions.Delete(ctx, found.ID); err != nil {
				return fmt.Errorf("delete exception %s: %w", found.ID, err)
			}
			res.Deleted = append(res.Deleted, *found)
		}

		current, err := tx.Exceptions.ListByExpert(ctx, expertID, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		res.Current = current
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "exception delete failed", "error", err)
		return DeleteExceptionsResult{}, err
	}

	res.DeletedCount = len(res.Deleted)
	if res.DeletedCount > 0 {
		s.cache.Invalidate(ctx, expertID)
	}
	logger.InfoContext(ctx, "exceptions deleted", "deleted", res.DeletedCount, "errors", len(res.Errors))
	return res, nil
}
