package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
)

// SubmitInput is a seller's bid on an open order.
type SubmitInput struct {
	OrderID      uuid.UUID
	Price        decimal.Decimal
	DeliveryDays int
	Message      string
}

type AcceptInput struct {
	OrderID uuid.UUID
	OfferID uuid.UUID
}

// OfferDTO is the API representation of an offer.
type OfferDTO struct {
	ID           uuid.UUID         `json:"id"`
	OrderID      uuid.UUID         `json:"order_id"`
	SellerID     uuid.UUID         `json:"seller_id"`
	Price        decimal.Decimal   `json:"price"`
	DeliveryDays int               `json:"delivery_days"`
	Message      string            `json:"message"`
	Status       enums.OfferStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AcceptResult describes the committed acceptance.
type AcceptResult struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderStatus    enums.OrderStatus `json:"order_status"`
	Offer          OfferDTO          `json:"offer"`
	RejectedOffers int               `json:"rejected_offers"`
}

func FromModel(o models.Offer) OfferDTO {
	return OfferDTO{
		ID:           o.ID,
		OrderID:      o.OrderID,
		SellerID:     o.SellerID,
		Price:        o.Price,
		DeliveryDays: o.DeliveryDays,
		Message:      o.Message,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
	}
}
