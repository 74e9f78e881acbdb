package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
)

// CreateInput is a user's abuse report.
type CreateInput struct {
	ReportedUserID uuid.UUID
	OrderID        *uuid.UUID
	MessageID      *uuid.UUID
	Reason         string
}

// ResolveInput is an admin decision on a pending report.
type ResolveInput struct {
	ReportID     uuid.UUID
	Action       string
	AdminComment *string
}

type ReportDTO struct {
	ID             uuid.UUID          `json:"id"`
	ReporterID     uuid.UUID          `json:"reporter_id"`
	ReportedUserID uuid.UUID          `json:"reported_user_id"`
	OrderID        *uuid.UUID         `json:"order_id,omitempty"`
	MessageID      *uuid.UUID         `json:"message_id,omitempty"`
	Reason         string             `json:"reason"`
	Status         enums.ReportStatus `json:"status"`
	AdminComment   *string            `json:"admin_comment,omitempty"`
	ResolvedBy     *uuid.UUID         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ResolveResult is the committed resolution.
type ResolveResult struct {
	Report     ReportDTO `json:"report"`
	UserBanned bool      `json:"user_banned"`
}

func FromModel(r models.Report) ReportDTO {
	return ReportDTO{
		ID:             r.ID,
		ReporterID:     r.ReporterID,
		ReportedUserID: r.ReportedUserID,
		OrderID:        r.OrderID,
		MessageID:      r.MessageID,
		Reason:         r.Reason,
		Status:         r.Status,
		AdminComment:   r.AdminComment,
		ResolvedBy:     r.ResolvedBy,
		ResolvedAt:     r.ResolvedAt,
		CreatedAt:      r.CreatedAt,
	}
}
