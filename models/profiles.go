package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Doctor 代表教授的角色資料
// 每個身份最多一筆，UserID 只在建立時寫入
type Doctor struct {
	gorm.Model

	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_doctor_user_id,where:deleted_at IS NULL;<-:create"`
	DepartmentID uint      `gorm:"not null;index"`
	Version      uint      `gorm:"not null"`

	// 外鍵關聯
	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnDelete:RESTRICT"`
}

// Teacher 代表助教的角色資料
type Teacher struct {
	gorm.Model

	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_teacher_user_id,where:deleted_at IS NULL;<-:create"`
	DepartmentID uint      `gorm:"not null;index"`
	Version      uint      `gorm:"not null"`

	// 外鍵關聯
	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnDelete:RESTRICT"`
}

// Student 代表學生的角色資料，額外記錄學年
type Student struct {
	gorm.Model

	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_student_user_id,where:deleted_at IS NULL;<-:create"`
	DepartmentID uint      `gorm:"not null;index"`
	Level        int       `gorm:"not null"`
	Version      uint      `gorm:"not null"`

	// 外鍵關聯
	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnDelete:RESTRICT"`
}
