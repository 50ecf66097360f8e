package repository

import (
	"testing"
	"time"

	"sims/internal/entity"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entity.Models()...))
	return db
}

func newTestUser(username, email string) *entity.User {
	off := false
	return &entity.User{
		Username:             username,
		Email:                email,
		PasswordHash:         "hash",
		FirstName:            "Test",
		LastName:             "User",
		Role:                 entity.RoleClient,
		IsActive:             true,
		CanAccessInventory:   &off,
		CanAccessOrders:      &off,
		CanAccessChatSupport: &off,
	}
}
