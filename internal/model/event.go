package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeAppointmentCreated       EventType = "appointment_created"
	EventTypeAppointmentStatusChanged EventType = "appointment_status_changed"
	EventTypeAppointmentDeleted       EventType = "appointment_deleted"
	EventTypeMeetingProvisionFailed   EventType = "meeting_provision_failed"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID        *uuid.UUID `gorm:"type:uuid;index"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON

	// Навигационные поля
	User        *User        `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
