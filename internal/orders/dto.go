package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
)

// CreateInput carries the fields a buyer supplies for a new order.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Budget      decimal.Decimal
}

// ListInput filters the open-orders feed.
type ListInput struct {
	Category string
	Limit    int
	Cursor   string
}

// ResolveDisputeInput is an admin decision on a disputed order.
type ResolveDisputeInput struct {
	OrderID uuid.UUID
	Outcome enums.OrderStatus
}

// OrderSummary is the list representation of an order.
type OrderSummary struct {
	ID        uuid.UUID           `json:"id"`
	BuyerID   uuid.UUID           `json:"buyer_id"`
	Title     string              `json:"title"`
	Category  enums.OrderCategory `json:"category"`
	Budget    decimal.Decimal     `json:"budget"`
	Status    enums.OrderStatus   `json:"status"`
	Paid      bool                `json:"paid"`
	CreatedAt time.Time           `json:"created_at"`
}

// OrderDetail is the single-order view. Payment fields are only filled for
// the buyer and admins.
type OrderDetail struct {
	OrderSummary
	Description        string              `json:"description"`
	AcceptedOfferID    *uuid.UUID          `json:"accepted_offer_id,omitempty"`
	AcceptedSellerID   *uuid.UUID          `json:"accepted_seller_id,omitempty"`
	PaidAmount         *decimal.Decimal    `json:"paid_amount,omitempty"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	PayerCard          *string             `json:"payer_card,omitempty"`
	AllowedTransitions []enums.OrderStatus `json:"allowed_transitions"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// SummaryFromModel projects an order onto its public list view.
func SummaryFromModel(o models.Order) OrderSummary {
	return OrderSummary{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		Title:     o.Title,
		Category:  o.Category,
		Budget:    o.Budget,
		Status:    o.Status,
		Paid:      o.IsPaid(),
		CreatedAt: o.CreatedAt,
	}
}
