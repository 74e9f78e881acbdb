package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/pagination"
)

// Repository defines persistence operations for reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, review *models.Review) error
	ExistsForReviewer(ctx context.Context, orderID, reviewerID uuid.UUID) (bool, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error)
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

// Insert relies on the (order_id, reviewer_id) unique key to reject a second
// review.
func (r *repository) Insert(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ExistsForReviewer(ctx context.Context, orderID, reviewerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("order_id = ? AND reviewer_id = ?", orderID, reviewerID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error) {
	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("seller_id = ?", sellerID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Review
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
