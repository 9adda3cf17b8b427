package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 代表系統中的身份
// 包含登入用的使用者名稱、顯示用的姓名與電話，以及被指派的角色
type User struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username           string    `gorm:"type:varchar(256);not null"`
	NormalizedUsername string    `gorm:"type:varchar(256);not null;uniqueIndex:idx_user_normalized_username"`
	Email              string    `gorm:"type:varchar(256);not null;default:''"`
	FirstName          string    `gorm:"type:varchar(50);not null;default:''"`
	LastName           string    `gorm:"type:varchar(50);not null;default:''"`
	PhoneNumber        string    `gorm:"type:varchar(32);not null;default:''"`
	Roles              []string  `gorm:"type:text;serializer:json"`
	PasswordHash       string    `gorm:"type:text;not null;default:'';<-:create"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BeforeCreate 產生 UUIDv7 主鍵並正規化使用者名稱
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("fail to generate user id, err=%w", err)
		}
		u.ID = id
	}
	u.NormalizedUsername = NormalizeUsername(u.Username)
	return nil
}

// NormalizeUsername 回傳用於唯一性比對的使用者名稱，比對不分大小寫
func NormalizeUsername(username string) string {
	return strings.ToUpper(strings.TrimSpace(username))
}
