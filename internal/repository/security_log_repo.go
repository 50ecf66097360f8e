package repository

import (
	"context"

	"sims/internal/entity"

	"gorm.io/gorm"
)

type SecurityLogRepository interface {
	Log(ctx context.Context, log *entity.SecurityLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]entity.SecurityLog, error)
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

func (r *securityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	return dbFromContext(ctx, r.db).Create(log).Error
}

func (r *securityLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]entity.SecurityLog, error) {
	var logs []entity.SecurityLog
	query := dbFromContext(ctx, r.db).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *entity.LoginAttempt) error
}

type loginAttemptRepository struct {
	db *gorm.DB
}

func NewLoginAttemptRepository(db *gorm.DB) LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

func (r *loginAttemptRepository) Record(ctx context.Context, attempt *entity.LoginAttempt) error {
	return dbFromContext(ctx, r.db).Create(attempt).Error
}
