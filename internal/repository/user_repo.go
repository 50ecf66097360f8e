package repository

import (
	"context"
	"errors"
	"time"

	"sims/internal/entity"
	"sims/internal/utils"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	ExistsUsername(ctx context.Context, username string) (bool, error)
	ExistsEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetCapability(ctx context.Context, id int64, capability entity.Capability, enabled bool) error
	GrantAllCapabilities(ctx context.Context, id int64) error
	UpdateRoleLabel(ctx context.Context, id int64, label string) error
	List(ctx context.Context, limit, offset int) ([]entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return translateError(dbFromContext(ctx, r.db).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", utils.NormalizeEmail(email))
}

func (r *userRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	return r.first(ctx, "username = ? OR email = ?", identifier, utils.NormalizeEmail(identifier))
}

func (r *userRepository) ExistsUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *userRepository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", utils.NormalizeEmail(email))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login": at})
}

func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

func (r *userRepository) SetCapability(ctx context.Context, id int64, capability entity.Capability, enabled bool) error {
	if !capability.Valid() {
		return errors.New("unknown capability")
	}
	return r.update(ctx, id, map[string]any{capability.Column(): enabled})
}

func (r *userRepository) GrantAllCapabilities(ctx context.Context, id int64) error {
	values := make(map[string]any, len(entity.Capabilities))
	for _, capability := range entity.Capabilities {
		values[capability.Column()] = true
	}
	return r.update(ctx, id, values)
}

func (r *userRepository) UpdateRoleLabel(ctx context.Context, id int64, label string) error {
	return r.update(ctx, id, map[string]any{"role": label})
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	var users []entity.User
	query := dbFromContext(ctx, r.db).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var user entity.User
	err := dbFromContext(ctx, r.db).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	err := dbFromContext(ctx, r.db).Model(&entity.User{}).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) update(ctx context.Context, id int64, values map[string]any) error {
	return dbFromContext(ctx, r.db).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(values).
		Error
}
