package models

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a catalog entry. Stock is only changed through the repository's
// conditional Reserve and Restock operations once orders are involved.
type Product struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string         `json:"name" gorm:"type:varchar(100)" validate:"required,min=3,max=100"`
	Description string         `json:"description" validate:"omitempty,max=500"`
	Image       string         `json:"image" validate:"omitempty,url"`
	Price       float64        `json:"price" validate:"required,gt=0"`
	Stock       int            `json:"stock" gorm:"check:stock >= 0" validate:"gte=0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
