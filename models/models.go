package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All 回傳所有需要建立資料表的模型，順序即為建立順序
func All() []any {
	return []any{
		&User{},
		&Department{},
		&Doctor{},
		&Teacher{},
		&Student{},
		&Image{},
	}
}

// Migrate 依照模型建立或更新資料表
func Migrate(db *gorm.DB) error {
	const op = "Migrate"
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("[%s] Fail to migrate models, err=%w", op, err)
	}
	return nil
}
