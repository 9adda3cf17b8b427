package database

import (
	"context"

	"gorm.io/gorm"

	"campus/models"
	"campus/profile"
)

// DepartmentDirectory 實現了 profile.IDepartmentDirectory
type DepartmentDirectory struct {
	db *gorm.DB
}

func NewDepartmentDirectory(db *gorm.DB) *DepartmentDirectory {
	return &DepartmentDirectory{db: db}
}

// FindByID 查詢系所，已刪除的系所視為不存在
func (d *DepartmentDirectory) FindByID(ctx context.Context, id uint) (profile.Department, error) {
	const op = "database.DepartmentDirectory.FindByID"
	var department models.Department
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&department).Error; err != nil {
		return profile.Department{}, translate(op, err)
	}
	return profile.Department{ID: department.ID, Name: department.Name}, nil
}
