package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus/models"
	"campus/profile"
)

// ProfileRepository 實現了 profile.IProfileRepository
// 所有角色種類共用同一份實作，依照 Kind 選擇資料表
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByIdentity 查詢身份在指定種類下的角色資料
func (r *ProfileRepository) FindByIdentity(ctx context.Context, identityID uuid.UUID, kind profile.Kind) (*profile.Profile, error) {
	const op = "database.ProfileRepository.FindByIdentity"
	row, err := newRow(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", identityID).First(row).Error; err != nil {
		return nil, translate(op, err)
	}
	return profile.Restore(fromRow(row)), nil
}

// Insert 新增角色資料並回傳資料庫指派的代理鍵
// NOTE: 同一個身份重複新增會違反 user_id 的唯一索引
func (r *ProfileRepository) Insert(ctx context.Context, p *profile.Profile) (uint, error) {
	const op = "database.ProfileRepository.Insert"
	if p.ID != 0 {
		return 0, fmt.Errorf("%s: profile %d already has an id", op, p.ID)
	}
	if p.IdentityID == uuid.Nil {
		return 0, fmt.Errorf("%s: profile is not bound to an identity", op)
	}
	row, err := toRow(p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, translate(op, err)
	}
	return fromRow(row).ID, nil
}

// Update 以代理鍵與版本號更新系所與種類專屬欄位，成功後遞增版本號
// user_id 在建立後不會再被寫入
func (r *ProfileRepository) Update(ctx context.Context, p *profile.Profile) error {
	const op = "database.ProfileRepository.Update"
	row, err := newRow(p.Kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	values := map[string]any{
		"department_id": p.DepartmentID,
		"version":       p.Version + 1,
	}
	if p.Kind.HasLevel() {
		values["level"] = p.Level
	}
	result := r.db.WithContext(ctx).Model(row).Where("id = ? AND version = ?", p.ID, p.Version).Updates(values)
	if result.Error != nil {
		return translate(op, result.Error)
	}
	if result.RowsAffected == 0 {
		// 區分資料不存在與版本過期
		var count int64
		if err := r.db.WithContext(ctx).Model(row).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return translate(op, err)
		}
		if count == 0 {
			return fmt.Errorf("%s: %w", op, profile.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, profile.ErrStaleProfile)
	}
	p.Version++
	return nil
}

func newRow(kind profile.Kind) (any, error) {
	switch kind {
	case profile.KindDoctor:
		return &models.Doctor{}, nil
	case profile.KindTeacher:
		return &models.Teacher{}, nil
	case profile.KindStudent:
		return &models.Student{}, nil
	}
	return nil, fmt.Errorf("%w: %q", profile.ErrUnknownKind, kind)
}

func toRow(p *profile.Profile) (any, error) {
	switch p.Kind {
	case profile.KindDoctor:
		return &models.Doctor{
			Model:        gorm.Model{ID: p.ID},
			UserID:       p.IdentityID,
			DepartmentID: p.DepartmentID,
			Version:      p.Version,
		}, nil
	case profile.KindTeacher:
		return &models.Teacher{
			Model:        gorm.Model{ID: p.ID},
			UserID:       p.IdentityID,
			DepartmentID: p.DepartmentID,
			Version:      p.Version,
		}, nil
	case profile.KindStudent:
		return &models.Student{
			Model:        gorm.Model{ID: p.ID},
			UserID:       p.IdentityID,
			DepartmentID: p.DepartmentID,
			Level:        p.Level,
			Version:      p.Version,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", profile.ErrUnknownKind, p.Kind)
}

func fromRow(row any) profile.Profile {
	switch r := row.(type) {
	case *models.Doctor:
		return profile.Profile{ID: r.ID, Kind: profile.KindDoctor, IdentityID: r.UserID, DepartmentID: r.DepartmentID, Version: r.Version}
	case *models.Teacher:
		return profile.Profile{ID: r.ID, Kind: profile.KindTeacher, IdentityID: r.UserID, DepartmentID: r.DepartmentID, Version: r.Version}
	case *models.Student:
		return profile.Profile{ID: r.ID, Kind: profile.KindStudent, IdentityID: r.UserID, DepartmentID: r.DepartmentID, Level: r.Level, Version: r.Version}
	}
	return profile.Profile{}
}
