package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/model"
)

type ExceptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityException, error)
	// Исключения эксперта в диапазоне дат плюс все ежегодные.
	// Нулевые from/to снимают соответствующую границу.
	ListByExpert(ctx context.Context, expertID uuid.UUID, from, to time.Time) ([]model.AvailabilityException, error)
	ListByExperts(ctx context.Context, expertIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]model.AvailabilityException, error)
	Create(ctx context.Context, e *model.AvailabilityException) error
	Save(ctx context.Context, e *model.AvailabilityException) error
	// FindExact ищет исключение по id, дате и границам (NULL совпадает с NULL).
	FindExact(ctx context.Context, expertID, id uuid.UUID, date time.Time, start, end *datatypes.Time) (*model.AvailabilityException, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormExceptionRepository struct {
	db *gorm.DB
}

func NewGormExceptionRepository(db *gorm.DB) *GormExceptionRepository {
	return &GormExceptionRepository{db: db}
}

func (r *GormExceptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityException, error) {
	var e model.AvailabilityException
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormExceptionRepository) rangeQuery(ctx context.Context, from, to time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.AvailabilityException{})
	switch {
	case !from.IsZero() && !to.IsZero():
		q = q.Where("(exception_date BETWEEN ? AND ?) OR is_recurring = ?", datatypes.Date(from), datatypes.Date(to), true)
	case !from.IsZero():
		q = q.Where("exception_date >= ? OR is_recurring = ?", datatypes.Date(from), true)
	case !to.IsZero():
		q = q.Where("exception_date <= ? OR is_recurring = ?", datatypes.Date(to), true)
	}
	return q
}

func (r *GormExceptionRepository) ListByExpert(ctx context.Context, expertID uuid.UUID, from, to time.Time) ([]model.AvailabilityException, error) {
	var out []model.AvailabilityException
	err := r.rangeQuery(ctx, from, to).
		Where("expert_id = ?", expertID).
		Order("exception_date ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormExceptionRepository) ListByExperts(ctx context.Context, expertIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]model.AvailabilityException, error) {
	grouped := make(map[uuid.UUID][]model.AvailabilityException, len(expertIDs))
	if len(expertIDs) == 0 {
		return grouped, nil
	}
	var out []model.AvailabilityException
	err := r.rangeQuery(ctx, from, to).
		Where("expert_id IN ?", expertIDs).
		Order("exception_date ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for _, e := range out {
		grouped[e.ExpertID] = append(grouped[e.ExpertID], e)
	}
	return grouped, nil
}

func (r *GormExceptionRepository) Create(ctx context.Context, e *model.AvailabilityException) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Save пишет все поля, включая обнулённые границы.
func (r *GormExceptionRepository) Save(ctx context.Context, e *model.AvailabilityException) error {
	return r.db.WithContext(ctx).
		Model(&model.AvailabilityException{}).
		Where("id = ?", e.ID).
		Select("exception_date", "exception_type", "start_time", "end_time", "service_id", "note", "is_recurring").
		Updates(e).Error
}

func (r *GormExceptionRepository) FindExact(
	ctx context.Context,
	expertID, id uuid.UUID,
	date time.Time,
	start, end *datatypes.Time,
) (*model.AvailabilityException, error) {
	q := r.db.WithContext(ctx).
		Where("id = ? AND expert_id = ?", id, expertID).
		Where("exception_date = ?", datatypes.Date(date))
	if start == nil {
		q = q.Where("start_time IS NULL")
	} else {
		q = q.Where("start_time = ?", *start)
	}
	if end == nil {
		q = q.Where("end_time IS NULL")
	} else {
		q = q.Where("end_time = ?", *end)
	}

	var e model.AvailabilityException
	if err := q.First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormExceptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.AvailabilityException{}, "id = ?", id).Error
}
