package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	"github.com/minelance/minelance-backend/pkg/pagination"
)

// Repository defines persistence operations for abuse reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// Resolve closes a pending report; false means it was no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, outcome enums.ReportStatus, comment *string, adminID uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Report, error)
}

type ListFilter struct {
	Status *enums.ReportStatus
	Limit  int
	Cursor *pagination.Cursor
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

func (r *repository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, outcome enums.ReportStatus, comment *string, adminID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND status = ?", id, enums.ReportStatusPending).
		Updates(map[string]any{
			"status":        outcome,
			"admin_comment": comment,
			"resolved_by":   adminID,
			"resolved_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Report, error) {
	query := r.db.WithContext(ctx).Model(&models.Report{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	var rows []models.Report
	if err := query.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
