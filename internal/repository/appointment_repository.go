package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mindcare/booking-core/internal/model"
)

// AppointmentFilter — условия выборки записей.
type AppointmentFilter struct {
	// Участник записи (эксперт или клиент); nil — без ограничения.
	ParticipantID *uuid.UUID
	Status        *model.AppointmentStatus
	From, To      time.Time
	Limit, Offset int
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Запись, где userID — эксперт или клиент; forUpdate блокирует строку.
	GetForParticipant(ctx context.Context, id, userID uuid.UUID, forUpdate bool) (*model.Appointment, error)
	// Есть ли у эксперта активная запись на дату и время.
	ExpertBusy(ctx context.Context, expertID uuid.UUID, date time.Time, at datatypes.Time) (bool, error)
	// Есть ли у клиента активная запись на дату и время.
	ClientBusy(ctx context.Context, clientID uuid.UUID, date time.Time, at datatypes.Time) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int64, error)
}

type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).
		Preload("Expert").
		Preload("Client").
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) GetForParticipant(ctx context.Context, id, userID uuid.UUID, forUpdate bool) (*model.Appointment, error) {
	q := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("expert_id = ? OR client_id = ?", userID, userID)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var a model.Appointment
	if err := q.First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) busy(ctx context.Context, column string, userID uuid.UUID, date time.Time, at datatypes.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where(column+" = ?", userID).
		Where("appointment_date = ? AND appointment_time = ?", datatypes.Date(date), at).
		Where("status <> ?", model.AppointmentStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormAppointmentRepository) ExpertBusy(ctx context.Context, expertID uuid.UUID, date time.Time, at datatypes.Time) (bool, error) {
	return r.busy(ctx, "expert_id", expertID, date, at)
}

func (r *GormAppointmentRepository) ClientBusy(ctx context.Context, clientID uuid.UUID, date time.Time, at datatypes.Time) (bool, error) {
	return r.busy(ctx, "client_id", clientID, date, at)
}

func (r *GormAppointmentRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *GormAppointmentRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Appointment{}, "id = ?", id).Error
}

func (r *GormAppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int64, error) {
	var (
		appointments []model.Appointment
		total        int64
	)

	q := r.db.WithContext(ctx).Model(&model.Appointment{})
	if f.ParticipantID != nil {
		q = q.Where("expert_id = ? OR client_id = ?", *f.ParticipantID, *f.ParticipantID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("appointment_date >= ?", datatypes.Date(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("appointment_date <= ?", datatypes.Date(f.To))
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	err := q.Preload("Expert").
		Preload("Client").
		Order("appointment_date DESC, appointment_time DESC").
		Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}

	return appointments, total, nil
}
