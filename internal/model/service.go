package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// services
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"type:varchar(255);not null"`
	Slug        string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string `gorm:"type:text"`

	// В минутах, может быть nil, если услуга не фиксирована по времени.
	DefaultDurationMin *int64 `gorm:"type:bigint"`

	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Навигация many2many
	Experts []ExpertProfile `gorm:"many2many:expert_services;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// expert_services — кастомная join-таблица многие-ко-многим.
type ExpertService struct {
	ExpertProfileID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID       uuid.UUID `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	ExpertProfile *ExpertProfile `gorm:"foreignKey:ExpertProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service       *Service       `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
