package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/enums"
)

// Offer is a seller bid against exactly one order.
type Offer struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	SellerID     uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Price        decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	DeliveryDays int               `gorm:"column:delivery_days;not null"`
	Message      string            `gorm:"column:message;not null"`
	Status       enums.OfferStatus `gorm:"column:status;not null;default:pending"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Offer) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
