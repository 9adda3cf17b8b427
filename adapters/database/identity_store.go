package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus/models"
	"campus/profile"
)

// IdentityStore 實現了 profile.IIdentityStore，以 users 資料表儲存身份
type IdentityStore struct {
	db *gorm.DB
}

func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// FindByID 以主鍵查詢身份
func (s *IdentityStore) FindByID(ctx context.Context, id uuid.UUID) (profile.Identity, error) {
	const op = "database.IdentityStore.FindByID"
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return profile.Identity{}, translate(op, err)
	}
	return toIdentity(user), nil
}

// FindByUsername 以正規化後的使用者名稱查詢身份，不分大小寫
func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (profile.Identity, error) {
	const op = "database.IdentityStore.FindByUsername"
	var user models.User
	if err := s.db.WithContext(ctx).Where("normalized_username = ?", models.NormalizeUsername(username)).First(&user).Error; err != nil {
		return profile.Identity{}, translate(op, err)
	}
	return toIdentity(user), nil
}

// Update 更新身份中可編輯的欄位，不會修改 email、角色與密碼
func (s *IdentityStore) Update(ctx context.Context, identity profile.Identity) error {
	const op = "database.IdentityStore.Update"
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", identity.ID).Updates(map[string]any{
		"username":            identity.Username,
		"normalized_username": models.NormalizeUsername(identity.Username),
		"first_name":          identity.FirstName,
		"last_name":           identity.LastName,
		"phone_number":        identity.PhoneNumber,
	})
	if result.Error != nil {
		return translate(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, profile.ErrNotFound)
	}
	return nil
}

func toIdentity(user models.User) profile.Identity {
	return profile.Identity{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PhoneNumber: user.PhoneNumber,
		Roles:       user.Roles,
	}
}
