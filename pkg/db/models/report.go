package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/enums"
)

type Report struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey"`
	ReporterID     uuid.UUID          `gorm:"column:reporter_id;type:uuid;not null"`
	ReportedUserID uuid.UUID          `gorm:"column:reported_user_id;type:uuid;not null"`
	OrderID        *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	MessageID      *uuid.UUID         `gorm:"column:message_id;type:uuid"`
	Reason         string             `gorm:"column:reason;not null"`
	Status         enums.ReportStatus `gorm:"column:status;not null;default:pending"`
	AdminComment   *string            `gorm:"column:admin_comment"`
	ResolvedBy     *uuid.UUID         `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt     *time.Time         `gorm:"column:resolved_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (r *Report) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
