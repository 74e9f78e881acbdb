package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minelance/minelance-backend/pkg/db/models"
)

// Repository records every payment notification the gateway delivers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// InsertEvent stores event unless its operation id is already recorded;
	// it reports whether a row was written.
	InsertEvent(ctx context.Context, event *models.PaymentEvent) (bool, error)
	FindByOperationID(ctx context.Context, operationID string) (*models.PaymentEvent, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
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

func (r *repository) InsertEvent(ctx context.Context, event *models.PaymentEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "operation_id"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByOperationID(ctx context.Context, operationID string) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	if err := r.db.WithContext(ctx).Where("operation_id = ?", operationID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkApplied(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("id = ?", id).
		UpdateColumn("applied", true).Error
}
