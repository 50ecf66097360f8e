package entity

import (
	"time"

	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess          SecurityAction = "login_success"
	LoginFailed           SecurityAction = "login_failed"
	LoginFailedInactive   SecurityAction = "login_failed_inactive"
	LoginPasswordVerified SecurityAction = "login_password_verified"
	RegisterSuccess       SecurityAction = "register_success"
	TokenRefreshed        SecurityAction = "token_refreshed"
	PasswordChanged       SecurityAction = "password_changed"
	PasswordReset         SecurityAction = "password_reset"
	Logout                SecurityAction = "logout"
	OtpVerifyFailed       SecurityAction = "otp_verify_failed"
	RoleAssigned          SecurityAction = "role_assigned"
	RoleRemoved           SecurityAction = "role_removed"
	CapabilityUpdated     SecurityAction = "capability_updated"
	AccountStatusChanged  SecurityAction = "account_status_changed"
)

type SecurityLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	UserID    *int64         `gorm:"index"`
	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(64);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

type LoginAttempt struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Identifier string    `gorm:"type:varchar(255);not null;index"`
	IPAddress  *string   `gorm:"type:varchar(45);index"`
	Success    bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"index"`
}

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&User{},
		&Role{},
		&UserRole{},
		&OtpCode{},
		&LoginAttempt{},
		&SecurityLog{},
	}
}
