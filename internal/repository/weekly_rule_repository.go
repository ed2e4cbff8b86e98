package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/model"
)

type WeeklyRuleRepository interface {
	// Все правила эксперта, по дню и началу.
	ListByExpert(ctx context.Context, expertID uuid.UUID) ([]model.WeeklyRule, error)
	ListActiveByExpert(ctx context.Context, expertID uuid.UUID) ([]model.WeeklyRule, error)
	// Активные правила нескольких экспертов, сгруппированные по эксперту.
	ListActiveByExperts(ctx context.Context, expertIDs []uuid.UUID) (map[uuid.UUID][]model.WeeklyRule, error)
	// Apply записывает изменения пакета: удаления, затем обновления границ, затем вставки.
	Apply(ctx context.Context, deleted, updated, added []model.WeeklyRule) error
}

type GormWeeklyRuleRepository struct {
	db *gorm.DB
}

func NewGormWeeklyRuleRepository(db *gorm.DB) *GormWeeklyRuleRepository {
	return &GormWeeklyRuleRepository{db: db}
}

func (r *GormWeeklyRuleRepository) ListByExpert(ctx context.Context, expertID uuid.UUID) ([]model.WeeklyRule, error) {
	var rules []model.WeeklyRule
	err := r.db.WithContext(ctx).
		Where("expert_id = ?", expertID).
		Order("day_of_week ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormWeeklyRuleRepository) ListActiveByExpert(ctx context.Context, expertID uuid.UUID) ([]model.WeeklyRule, error) {
	var rules []model.WeeklyRule
	err := r.db.WithContext(ctx).
		Where("expert_id = ? AND is_active = ?", expertID, true).
		Order("day_of_week ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormWeeklyRuleRepository) ListActiveByExperts(ctx context.Context, expertIDs []uuid.UUID) (map[uuid.UUID][]model.WeeklyRule, error) {
	out := make(map[uuid.UUID][]model.WeeklyRule, len(expertIDs))
	if len(expertIDs) == 0 {
		return out, nil
	}
	var rules []model.WeeklyRule
	err := r.db.WithContext(ctx).
		Where("expert_id IN ? AND is_active = ?", expertIDs, true).
		Order("day_of_week ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		out[rule.ExpertID] = append(out[rule.ExpertID], rule)
	}
	return out, nil
}

func (r *GormWeeklyRuleRepository) Apply(ctx context.Context, deleted, updated, added []model.WeeklyRule) error {
	db := r.db.WithContext(ctx)

	if len(deleted) > 0 {
		ids := make([]uuid.UUID, len(deleted))
		for i, rule := range deleted {
			ids[i] = rule.ID
		}
		if err := db.Where("id IN ?", ids).Delete(&model.WeeklyRule{}).Error; err != nil {
			return err
		}
	}

	for _, rule := range updated {
		err := db.Model(&model.WeeklyRule{}).
			Where("id = ?", rule.ID).
			Updates(map[string]any{
				"start_time": rule.StartTime,
				"end_time":   rule.EndTime,
			}).Error
		if err != nil {
			return err
		}
	}

	if len(added) > 0 {
		if err := db.Create(&added).Error; err != nil {
			return err
		}
	}
	return nil
}
