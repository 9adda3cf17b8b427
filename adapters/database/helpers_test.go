package database_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus/models"
)

// setupTest 建立一個獨立的記憶體資料庫並完成 migration
func setupTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		Username:  username,
		Email:     username + "@campus.test",
		FirstName: "First",
		LastName:  "Last",
		Roles:     []string{"Student"},
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedDepartment(t *testing.T, db *gorm.DB, name string) models.Department {
	t.Helper()
	department := models.Department{Name: name}
	require.NoError(t, db.Create(&department).Error)
	return department
}
