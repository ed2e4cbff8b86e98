package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store собирает репозитории над одним *gorm.DB (пулом или транзакцией).
type Store struct {
	db *gorm.DB

	Users        UserRepository
	Experts      ExpertRepository
	Services     ServiceRepository
	WeeklyRules  WeeklyRuleRepository
	Exceptions   ExceptionRepository
	Appointments AppointmentRepository
	Events       EventRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        NewGormUserRepository(db),
		Experts:      NewGormExpertRepository(db),
		Services:     NewGormServiceRepository(db),
		WeeklyRules:  NewGormWeeklyRuleRepository(db),
		Exceptions:   NewGormExceptionRepository(db),
		Appointments: NewGormAppointmentRepository(db),
		Events:       NewGormEventRepository(db),
	}
}

// Transaction выполняет fn в одной транзакции. Ошибка из fn откатывает всё.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
