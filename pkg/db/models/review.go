package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is unique per (order_id, reviewer_id).
type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null"`
	SellerID   uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    *string   `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
