package offers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	"github.com/minelance/minelance-backend/pkg/pagination"
)

// Repository defines persistence operations for the offers table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, filter ListFilter) ([]models.Offer, error)
	HasPendingFromSeller(ctx context.Context, orderID, sellerID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.OfferStatus) (bool, error)
	RejectPendingExcept(ctx context.Context, orderID, keepID uuid.UUID) ([]models.Offer, error)
}

// ListFilter narrows an order's offers; SellerID restricts to one seller.
type ListFilter struct {
	SellerID *uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID, filter ListFilter) ([]models.Offer, error) {
	query := r.db.WithContext(ctx).Model(&models.Offer{}).Where("order_id = ?", orderID)
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	var rows []models.Offer
	if err := query.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasPendingFromSeller(ctx context.Context, orderID, sellerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("order_id = ? AND seller_id = ? AND status = ?", orderID, sellerID, enums.OfferStatusPending).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus is a conditional write; false means the offer was not in the
// expected status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.OfferStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RejectPendingExcept rejects every other pending offer of the order and
// returns the rows it rejected.
func (r *repository) RejectPendingExcept(ctx context.Context, orderID, keepID uuid.UUID) ([]models.Offer, error) {
	var pending []models.Offer
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND id <> ? AND status = ?", orderID, keepID, enums.OfferStatusPending).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, offer := range pending {
		ids = append(ids, offer.ID)
	}
	err = r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id IN ? AND status = ?", ids, enums.OfferStatusPending).
		Update("status", enums.OfferStatusRejected).Error
	if err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Status = enums.OfferStatusRejected
	}
	return pending, nil
}
