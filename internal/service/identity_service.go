package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

// Actor — аутентифицированный пользователь с ролью из хранилища.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
	// Профиль эксперта; nil, если роль не expert или профиль не создан.
	ExpertID *uuid.UUID
	User     *model.User
}

func (a Actor) IsAdmin() bool  { return a.Role == model.RoleAdmin }
func (a Actor) IsExpert() bool { return a.Role == model.RoleExpert }
func (a Actor) IsClient() bool { return a.Role == model.RoleClient }

// ExpertProfileID возвращает профиль эксперта или ErrForbidden.
func (a Actor) ExpertProfileID() (uuid.UUID, error) {
	if !a.IsExpert() || a.ExpertID == nil {
		return uuid.Nil, ErrForbidden
	}
	return *a.ExpertID, nil
}

// IdentityService определяет, кто выполняет запрос.
type IdentityService struct {
	store *repository.Store
}

func NewIdentityService(store *repository.Store) *IdentityService {
	return &IdentityService{store: store}
}

// ResolveActor загружает пользователя по id из токена.
// Роль всегда берётся из хранилища, не из токена.
func (s *IdentityService) ResolveActor(ctx context.Context, userID uuid.UUID) (Actor, error) {
	u, err := s.store.Users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Actor{}, ErrUnauthenticated
	}
	if err != nil {
		return Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	if !u.IsActive {
		return Actor{}, ErrUnauthenticated
	}
	role, err := model.ParseRole(string(u.Role))
	if err != nil {
		return Actor{}, ErrForbidden
	}

	actor := Actor{UserID: u.ID, Role: role, User: u}
	if role == model.RoleExpert && u.ExpertProfile != nil {
		id := u.ExpertProfile.ID
		actor.ExpertID = &id
	}
	return actor, nil
}
