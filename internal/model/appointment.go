package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	// создана экспертом
	AppointmentStatusPending AppointmentStatus = "pending"
	// запрос клиента, ждёт решения эксперта
	AppointmentStatusWaitingApproval AppointmentStatus = "waiting_approval"
	AppointmentStatusConfirmed       AppointmentStatus = "confirmed"
	// клиент попросил отмену
	AppointmentStatusCancelRequested AppointmentStatus = "cancel_requested"
	AppointmentStatusCancelled       AppointmentStatus = "cancelled"
	AppointmentStatusCompleted       AppointmentStatus = "completed"
)

const DefaultAppointmentDuration = 45

// ActiveSlotIndex — частичный уникальный индекс: у эксперта не больше одной
// активной (не отменённой и не удалённой) записи на дату и время.
const ActiveSlotIndex = "idx_appointments_active_expert_slot"

// appointments
type Appointment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Обе стороны — пользователи, не профили.
	ExpertID uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index"`

	Date     datatypes.Date `gorm:"column:appointment_date;not null;index"`
	Time     datatypes.Time `gorm:"column:appointment_time;not null"`
	Duration int            `gorm:"not null;default:45"`

	Status      AppointmentStatus `gorm:"type:varchar(32);not null;index"`
	IsConfirmed bool              `gorm:"not null;default:false"`
	Notes       string            `gorm:"type:text"`

	// Внешняя встреча (Zoom и т.п.)
	MeetingID       *string `gorm:"type:varchar(128)"`
	MeetingStartURL *string `gorm:"type:varchar(1000)"`
	MeetingJoinURL  *string `gorm:"type:varchar(500)"`

	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Expert *User `gorm:"foreignKey:ExpertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Client *User `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// StartsAt собирает дату и время записи в момент времени в зоне loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := time.Time(a.Date).Date()
	tod := time.Duration(a.Time)
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(tod)
}

func (a *Appointment) HasMeeting() bool {
	return a.MeetingID != nil && *a.MeetingID != ""
}

func (a *Appointment) IsDeleted() bool {
	return a.DeletedAt.Valid
}
