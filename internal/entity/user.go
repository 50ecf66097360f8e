package entity

import "time"

type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	Username     string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string  `gorm:"type:varchar(255);not null"`
	FirstName    string  `gorm:"type:varchar(100);not null"`
	LastName     string  `gorm:"type:varchar(100);not null"`
	Phone        *string `gorm:"type:varchar(30)"`
	Country      string  `gorm:"type:varchar(100)"`

	// Role is the display label of the highest-priority role. user_roles is authoritative.
	Role     string `gorm:"type:varchar(50)"`
	IsActive bool   `gorm:"not null"`

	// Nil means the row predates the column and is treated as allowed.
	CanAccessInventory   *bool
	CanAccessOrders      *bool
	CanAccessChatSupport *bool

	LastLogin *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
