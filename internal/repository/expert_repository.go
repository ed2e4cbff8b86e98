package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mindcare/booking-core/internal/model"
)

type ExpertRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExpertProfile, error)
	// Профиль эксперта по пользователю.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.ExpertProfile, error)
	Create(ctx context.Context, expert *model.ExpertProfile) error
	// Lock блокирует строку профиля до конца транзакции.
	Lock(ctx context.Context, id uuid.UUID) error
	// Привязать услугу к эксперту.
	AddService(ctx context.Context, expertID, serviceID uuid.UUID) error
	// Активные эксперты, оказывающие услугу.
	ListByService(ctx context.Context, serviceID uuid.UUID) ([]model.ExpertProfile, error)
}

type GormExpertRepository struct {
	db *gorm.DB
}

func NewGormExpertRepository(db *gorm.DB) *GormExpertRepository {
	return &GormExpertRepository{db: db}
}

func (r *GormExpertRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExpertProfile, error) {
	var e model.ExpertProfile
	if err := r.db.WithContext(ctx).Preload("User").First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormExpertRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.ExpertProfile, error) {
	var e model.ExpertProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormExpertRepository) Create(ctx context.Context, expert *model.ExpertProfile) error {
	return r.db.WithContext(ctx).Create(expert).Error
}

func (r *GormExpertRepository) Lock(ctx context.Context, id uuid.UUID) error {
	var e model.ExpertProfile
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&e, "id = ?", id).Error
}

func (r *GormExpertRepository) AddService(ctx context.Context, expertID, serviceID uuid.UUID) error {
	link := model.ExpertService{ExpertProfileID: expertID, ServiceID: serviceID}
	return r.db.WithContext(ctx).Create(&link).Error
}

func (r *GormExpertRepository) ListByService(ctx context.Context, serviceID uuid.UUID) ([]model.ExpertProfile, error) {
	var experts []model.ExpertProfile
	err := r.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN expert_services ON expert_services.expert_profile_id = expert_profiles.id").
		Joins("JOIN users ON users.id = expert_profiles.user_id").
		Where("expert_services.service_id = ?", serviceID).
		Where("users.is_active = ?", true).
		Order("expert_profiles.created_at ASC").
		Find(&experts).Error
	if err != nil {
		return nil, err
	}
	return experts, nil
}
