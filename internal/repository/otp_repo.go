package repository

import (
	"context"
	"errors"
	"time"

	"sims/internal/entity"

	"gorm.io/gorm"
)

type OtpRepository interface {
	Create(ctx context.Context, code *entity.OtpCode) error
	FindActive(ctx context.Context, email string, purposes []entity.OtpPurpose, now time.Time) (*entity.OtpCode, error)
	Consume(ctx context.Context, id int64, now time.Time) (bool, error)
	RecordFailedAttempt(ctx context.Context, email string, purpose entity.OtpPurpose, now time.Time) error
	LatestIssuedAt(ctx context.Context, email string, purpose entity.OtpPurpose) (*time.Time, error)
	CountIssuedSince(ctx context.Context, email string, purpose entity.OtpPurpose, since time.Time) (int64, error)
	CountIssuedByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
}

type otpRepository struct {
	db *gorm.DB
}

func NewOtpRepository(db *gorm.DB) OtpRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Create(ctx context.Context, code *entity.OtpCode) error {
	return dbFromContext(ctx, r.db).Create(code).Error
}

// FindActive returns the newest unconsumed, unexpired code for email under any of purposes.
func (r *otpRepository) FindActive(
	ctx context.Context,
	email string,
	purposes []entity.OtpPurpose,
	now time.Time,
) (*entity.OtpCode, error) {
	var code entity.OtpCode
	err := dbFromContext(ctx, r.db).
		Where(`
			email = ? AND
			purpose IN ? AND
			consumed_at IS NULL AND
			expires_at >= ?
		`, email, purposes, now).
		Order("id DESC").
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// Consume marks the code used only if nobody else has. It reports whether this call won.
func (r *otpRepository) Consume(ctx context.Context, id int64, now time.Time) (bool, error) {
	result := dbFromContext(ctx, r.db).
		Model(&entity.OtpCode{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *otpRepository) RecordFailedAttempt(ctx context.Context, email string, purpose entity.OtpPurpose, now time.Time) error {
	db := dbFromContext(ctx, r.db)
	var latest entity.OtpCode
	err := db.Select("id").
		Where("email = ? AND purpose = ?", email, purpose).
		Order("id DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return db.Model(&entity.OtpCode{}).
		Where("id = ?", latest.ID).
		Updates(map[string]any{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": now,
		}).Error
}

func (r *otpRepository) LatestIssuedAt(ctx context.Context, email string, purpose entity.OtpPurpose) (*time.Time, error) {
	var latest entity.OtpCode
	err := dbFromContext(ctx, r.db).
		Select("id", "created_at").
		Where("email = ? AND purpose = ?", email, purpose).
		Order("id DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &latest.CreatedAt, nil
}

func (r *otpRepository) CountIssuedSince(ctx context.Context, email string, purpose entity.OtpPurpose, since time.Time) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.db).
		Model(&entity.OtpCode{}).
		Where("email = ? AND purpose = ? AND created_at >= ?", email, purpose, since).
		Count(&count).Error
	return count, err
}

func (r *otpRepository) CountIssuedByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.db).
		Model(&entity.OtpCode{}).
		Where("requester_ip = ? AND created_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}
