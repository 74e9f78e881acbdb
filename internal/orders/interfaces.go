package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	"github.com/minelance/minelance-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByIDForUpdate reads the order holding a row lock until the
	// surrounding transaction ends. Use it only through WithTx.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateStatus moves the order from expected to next and applies extra
	// columns in the same statement. It reports false when the row was not in
	// the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus, extra map[string]any) (bool, error)
	// MarkPaid stamps payment metadata once; false means the order was already paid.
	MarkPaid(ctx context.Context, id uuid.UUID, payment PaymentRecord) (bool, error)
	ListOpen(ctx context.Context, filter ListFilter) ([]models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter) ([]models.Order, error)
	// AcceptedSellerID returns the seller of the accepted offer, or nil when
	// none was accepted.
	AcceptedSellerID(ctx context.Context, orderID uuid.UUID) (*uuid.UUID, error)
}

// PaymentRecord is the payment metadata stamped by the payment webhook.
type PaymentRecord struct {
	OperationID string
	Amount      decimal.Decimal
	PayerCard   string
	PaidAt      time.Time
}

// ListFilter narrows cursor list queries. Limit already carries the
// look-ahead row.
type ListFilter struct {
	Category *enums.OrderCategory
	Status   *enums.OrderStatus
	Limit    int
	Cursor   *pagination.Cursor
}
