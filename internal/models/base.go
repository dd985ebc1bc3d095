package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel defines the common fields for users and messages.
// Relations keep their own columns because they are never soft-deleted.
type BaseModel struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
