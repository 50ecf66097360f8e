package repository

import (
	"context"
	"errors"

	"sims/internal/entity"
	"sims/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository interface {
	EnsureRole(ctx context.Context, name string) (*entity.Role, error)
	FindByName(ctx context.Context, name string) (*entity.Role, error)
	Link(ctx context.Context, userID, roleID int64) error
	Unlink(ctx context.Context, userID, roleID int64) (bool, error)
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// EnsureRole returns the named role, creating it on first reference.
func (r *roleRepository) EnsureRole(ctx context.Context, name string) (*entity.Role, error) {
	found, err := r.FindByName(ctx, name)
	if err != nil || found != nil {
		return found, err
	}
	err = dbFromContext(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&entity.Role{Name: name}).Error
	if err != nil {
		return nil, err
	}
	found, err = r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.New("role missing after insert")
	}
	return found, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	err := dbFromContext(ctx, r.db).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) Link(ctx context.Context, userID, roleID int64) error {
	return dbFromContext(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.UserRole{UserID: userID, RoleID: roleID}).
		Error
}

func (r *roleRepository) Unlink(ctx context.Context, userID, roleID int64) (bool, error) {
	result := dbFromContext(ctx, r.db).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&entity.UserRole{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *roleRepository) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := dbFromContext(ctx, r.db).
		Model(&entity.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.id ASC").
		Pluck("roles.name", &names).
		Error
	if err != nil {
		return nil, err
	}
	return utils.NormalizeRoles(names), nil
}
