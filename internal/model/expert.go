package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExpertProfile — профиль специалиста. Владеет недельным расписанием и исключениями.
// Привязан к базе пользователей через UserID.
type ExpertProfile struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Внешний ключ на таблицу пользователей.
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	About string `gorm:"type:text"`

	// Часовой пояс, в котором эксперт задаёт расписание.
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Services []Service `gorm:"many2many:expert_services;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	WeeklyRules []WeeklyRule            `gorm:"foreignKey:ExpertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Exceptions  []AvailabilityException `gorm:"foreignKey:ExpertID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (p *ExpertProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
