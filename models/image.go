package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Image 代表使用者上傳的大頭貼
// 每次上傳都會留下一筆紀錄，最新的一筆即為目前的大頭貼
type Image struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UploaderID  uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	Url         string    `gorm:"type:text;not null;<-:create"`
	ContentType string    `gorm:"type:varchar(64);not null;<-:create"`
	Size        int64     `gorm:"not null;<-:create"`
	CreatedAt   time.Time

	Uploader *User `gorm:"foreignKey:UploaderID;constraint:OnDelete:RESTRICT"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("fail to generate image id, err=%w", err)
		}
		i.ID = id
	}
	return nil
}
