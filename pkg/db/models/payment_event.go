package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentEvent records every gateway operation id the webhook has accepted.
// The unique operation_id makes redelivery detectable inside the transaction.
type PaymentEvent struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OperationID string          `gorm:"column:operation_id;not null;uniqueIndex"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	PayerCard   string          `gorm:"column:payer_card;not null"`
	Applied     bool            `gorm:"column:applied;not null"`
	ReceivedAt  time.Time       `gorm:"column:received_at;autoCreateTime"`
}

func (e *PaymentEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
