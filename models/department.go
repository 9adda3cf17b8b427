package models

import "gorm.io/gorm"

// Department 代表系所，角色資料只會參照不會修改
type Department struct {
	gorm.Model

	Name string `gorm:"type:varchar(100);not null;uniqueIndex:idx_department_name,where:deleted_at IS NULL"`
}
