package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultSlotMinutes = 50
	DefaultCapacity    = 1
)

// weekly_rules — повторяющееся недельное окно доступности эксперта.
// DayOfWeek: 0 — понедельник, 6 — воскресенье.
//
// Правила с одинаковой сигнатурой (день, услуга, активность, длина слота, ёмкость)
// не пересекаются и не касаются друг друга: соседние окна сливаются до записи.
type WeeklyRule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ExpertID  uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_weekly_rules_signature_start,priority:1"`
	DayOfWeek int            `gorm:"not null;uniqueIndex:idx_weekly_rules_signature_start,priority:2"`
	StartTime datatypes.Time `gorm:"not null;uniqueIndex:idx_weekly_rules_signature_start,priority:7"`
	EndTime   datatypes.Time `gorm:"not null"`

	ServiceID *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_weekly_rules_signature_start,priority:3"`

	IsActive    bool `gorm:"not null;uniqueIndex:idx_weekly_rules_signature_start,priority:4"`
	SlotMinutes int  `gorm:"not null;default:50;uniqueIndex:idx_weekly_rules_signature_start,priority:5"`
	Capacity    int  `gorm:"not null;default:1;uniqueIndex:idx_weekly_rules_signature_start,priority:6"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Expert  *ExpertProfile `gorm:"foreignKey:ExpertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service *Service       `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (r *WeeklyRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RuleSignature — набор атрибутов, в пределах которого правила сливаются.
type RuleSignature struct {
	DayOfWeek   int
	ServiceID   uuid.UUID // uuid.Nil — без услуги
	IsActive    bool
	SlotMinutes int
	Capacity    int
}

func (r *WeeklyRule) Signature() RuleSignature {
	return RuleSignature{
		DayOfWeek:   r.DayOfWeek,
		ServiceID:   derefUUID(r.ServiceID),
		IsActive:    r.IsActive,
		SlotMinutes: r.SlotMinutes,
		Capacity:    r.Capacity,
	}
}

// SameService сравнивает необязательные ссылки на услугу по значению.
func SameService(a, b *uuid.UUID) bool {
	return derefUUID(a) == derefUUID(b)
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// Weekday переводит дату в номер дня недели с понедельника (0..6).
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}
