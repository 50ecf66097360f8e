package entity

import "time"

const (
	RoleSuperAdmin = "Super Admin"
	RoleAdmin      = "Admin"
	RoleEmployee   = "Employee"
	RoleClient     = "Client"
)

type Role struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(50);uniqueIndex;not null"`
	CreatedAt time.Time
}

type UserRole struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	RoleID    int64 `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}
