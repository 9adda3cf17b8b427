package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campus/profile"
)

// translate 將 gorm 的錯誤轉換為 profile 套件使用的錯誤
func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, profile.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
