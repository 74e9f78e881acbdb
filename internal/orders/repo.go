package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, payment PaymentRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid_at IS NULL", id).
		Updates(map[string]any{
			"paid_amount":          payment.Amount,
			"paid_at":              payment.PaidAt,
			"payer_card":           payment.PayerCard,
			"payment_operation_id": payment.OperationID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListOpen(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	status := enums.OrderStatusOpen
	filter.Status = &status
	return r.list(r.db.WithContext(ctx).Model(&models.Order{}), filter)
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter) ([]models.Order, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID), filter)
}

func (r *repository) list(query *gorm.DB, filter ListFilter) ([]models.Order, error) {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AcceptedSellerID(ctx context.Context, orderID uuid.UUID) (*uuid.UUID, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Select("offers.seller_id").
		Joins("JOIN orders ON orders.accepted_offer_id = offers.id").
		Where("orders.id = ?", orderID).
		Take(&offer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer.SellerID, nil
}
