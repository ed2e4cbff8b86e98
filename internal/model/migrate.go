package model

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&ExpertProfile{}, "Services", &ExpertService{}); err != nil {
		return fmt.Errorf("setup join table: %w", err)
	}
	if err := db.AutoMigrate(
		&User{},
		&Service{},
		&ExpertProfile{},
		&ExpertService{},
		&WeeklyRule{},
		&AvailabilityException{},
		&Appointment{},
		&Event{},
	); err != nil {
		return err
	}

	// Частичный индекс gorm-тегами не описать одинаково для всех диалектов,
	// поэтому создаём его явно. Синтаксис общий для Postgres и SQLite.
	stmt := "CREATE UNIQUE INDEX IF NOT EXISTS " + ActiveSlotIndex +
		" ON appointments (expert_id, appointment_date, appointment_time)" +
		" WHERE status <> 'cancelled' AND deleted_at IS NULL"
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create %s: %w", ActiveSlotIndex, err)
	}
	return nil
}
