package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип исключения из недельного расписания.
type ExceptionType string

const (
	// cancel — отменяет недельную доступность (весь день или интервал).
	ExceptionTypeCancel ExceptionType = "cancel"
	// add — добавляет доступность на конкретную дату, интервал обязателен.
	ExceptionTypeAdd ExceptionType = "add"
)

func (t ExceptionType) Valid() bool {
	return t == ExceptionTypeCancel || t == ExceptionTypeAdd
}

// availability_exceptions
type AvailabilityException struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ExpertID uuid.UUID      `gorm:"type:uuid;not null;index:idx_exceptions_expert_date,priority:1"`
	Date     datatypes.Date `gorm:"column:exception_date;not null;index:idx_exceptions_expert_date,priority:2"`

	Type ExceptionType `gorm:"column:exception_type;type:varchar(10);not null"`

	// Для add обязательны, для cancel без границ означает «весь день».
	StartTime *datatypes.Time
	EndTime   *datatypes.Time

	ServiceID *uuid.UUID `gorm:"type:uuid;index"`

	Note string `gorm:"type:varchar(255)"`

	// Повторять каждый год в тот же день и месяц.
	IsRecurring bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`

	Expert  *ExpertProfile `gorm:"foreignKey:ExpertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service *Service       `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (e *AvailabilityException) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// WholeDay — исключение без временных границ.
func (e *AvailabilityException) WholeDay() bool {
	return e.StartTime == nil && e.EndTime == nil
}

// Day возвращает дату исключения как time.Time (UTC, полночь).
func (e *AvailabilityException) Day() time.Time {
	return time.Time(e.Date)
}
