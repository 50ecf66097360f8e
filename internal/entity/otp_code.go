package entity

import "time"

type OtpPurpose string

const (
	OtpLogin         OtpPurpose = "login"
	OtpLoginVerify   OtpPurpose = "login_verify"
	OtpRegister      OtpPurpose = "register"
	OtpResetPassword OtpPurpose = "reset_password"
)

func (p OtpPurpose) Valid() bool {
	switch p {
	case OtpLogin, OtpLoginVerify, OtpRegister, OtpResetPassword:
		return true
	}
	return false
}

type OtpCode struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID *int64 `gorm:"index"`

	Email    string     `gorm:"type:varchar(255);not null;index:idx_otp_lookup,priority:1"`
	Purpose  OtpPurpose `gorm:"type:varchar(32);not null;index:idx_otp_lookup,priority:2"`
	CodeHash string     `gorm:"type:varchar(64);not null"`

	RequesterIP   *string `gorm:"type:varchar(45);index"`
	AttemptCount  int     `gorm:"not null"`
	LastAttemptAt *time.Time

	ExpiresAt  time.Time  `gorm:"not null"`
	ConsumedAt *time.Time `gorm:"index:idx_otp_lookup,priority:3"`

	CreatedAt time.Time `gorm:"index"`
}
