package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/enums"
)

// Order is a buyer's request for work. Rows are never hard-deleted.
//
// Payment is tracked as metadata: PaidAt is set exactly once by the payment
// webhook and does not change Status.
type Order struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Title           string              `gorm:"column:title;not null"`
	Description     string              `gorm:"column:description;not null"`
	Category        enums.OrderCategory `gorm:"column:category;not null"`
	Budget          decimal.Decimal     `gorm:"column:budget;type:numeric(12,2);not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:open"`
	AcceptedOfferID *uuid.UUID          `gorm:"column:accepted_offer_id;type:uuid"`

	PaidAmount         *decimal.Decimal `gorm:"column:paid_amount;type:numeric(12,2)"`
	PaidAt             *time.Time       `gorm:"column:paid_at"`
	PayerCard          *string          `gorm:"column:payer_card"`
	PaymentOperationID *string          `gorm:"column:payment_operation_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (o Order) IsPaid() bool {
	return o.PaidAt != nil
}
