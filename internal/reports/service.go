package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/internal/policy"
	"github.com/minelance/minelance-backend/internal/users"
	"github.com/minelance/minelance-backend/pkg/auth"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/metrics"
	"github.com/minelance/minelance-backend/pkg/pagination"
	"github.com/minelance/minelance-backend/pkg/types"
)

const (
	workflowCreate  = "report_create"
	workflowResolve = "report_resolve"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, n notifications.Notice)
}

// Service covers filing reports and the moderation queue.
type Service interface {
	Create(ctx context.Context, caller auth.Identity, input CreateInput) (*ReportDTO, error)
	List(ctx context.Context, caller auth.Identity, status string, params pagination.Params) (*types.Page[ReportDTO], error)
	Resolve(ctx context.Context, caller auth.Identity, input ResolveInput) (*ResolveResult, error)
}

type service struct {
	repo    Repository
	users   *users.Repository
	orders  orders.Repository
	tx      txRunner
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.WorkflowMetrics
	now     func() time.Time
}

func NewService(repo Repository, userRepo *users.Repository, orderRepo orders.Repository, tx txRunner, notify notifier, logg *logger.Logger, m *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		users:   userRepo,
		orders:  orderRepo,
		tx:      tx,
		notify:  notify,
		logg:    logg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, caller auth.Identity, input CreateInput) (dto *ReportDTO, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowCreate, started, err) }()

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ReportedUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reported user is required").
			WithDetails(map[string]string{"reported_user_id": "required"})
	}
	if input.ReportedUserID == caller.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "you cannot report yourself").
			WithDetails(map[string]string{"reported_user_id": "cannot report yourself"})
	}
	reason, err := policy.ValidateReportReason(input.Reason)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, input.ReportedUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reported user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reported user")
	}
	if input.OrderID != nil {
		if _, err := s.orders.FindByID(ctx, *input.OrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}

	report := &models.Report{
		ReporterID:     caller.ID,
		ReportedUserID: input.ReportedUserID,
		OrderID:        input.OrderID,
		MessageID:      input.MessageID,
		Reason:         reason,
		Status:         enums.ReportStatusPending,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create report")
	}

	ctx = s.logg.WithField(ctx, "report_id", report.ID.String())
	s.logg.Info(ctx, "report.created")

	out := FromModel(*report)
	return &out, nil
}

// List is the moderation queue, open to admins and moderators.
func (s *service) List(ctx context.Context, caller auth.Identity, status string, params pagination.Params) (*types.Page[ReportDTO], error) {
	if err := policy.RequireRole(caller, enums.UserRoleAdmin, enums.UserRoleModerator); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := ListFilter{Limit: pagination.LimitWithBuffer(params.Limit), Cursor: cursor}
	if status != "" {
		parsed, err := enums.ParseReportStatus(status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &parsed
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reports")
	}
	rows, next := pagination.Page(rows, params.Limit, func(r models.Report) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	items := make([]ReportDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	return &types.Page[ReportDTO]{Items: items, NextCursor: next}, nil
}

// Resolve closes a pending report. Approval bans the reported user in the
// same transaction. Notifications go out after commit.
func (s *service) Resolve(ctx context.Context, caller auth.Identity, input ResolveInput) (result *ResolveResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowResolve, started, err) }()

	if err := policy.RequireRole(caller, enums.UserRoleAdmin); err != nil {
		return nil, err
	}
	action, err := enums.ParseReportAction(input.Action)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "action must be approve or reject").
			WithDetails(map[string]string{"action": "must be approve or reject"})
	}
	outcome, _ := action.Outcome()
	comment, err := policy.ValidateAdminComment(input.AdminComment)
	if err != nil {
		return nil, err
	}

	report, err := s.repo.FindByID(ctx, input.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}
	if report.Status != enums.ReportStatusPending {
		return nil, policy.InvalidTransition("report is already resolved", report.Status)
	}

	banned := action == enums.ReportActionApprove
	resolvedAt := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Resolve(ctx, report.ID, outcome, comment, caller.ID, resolvedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve report")
		}
		if !ok {
			current := any(report.Status)
			if fresh, err := repo.FindByID(ctx, report.ID); err == nil {
				current = fresh.Status
			}
			return policy.InvalidTransition("report is already resolved", current)
		}
		if !banned {
			return nil
		}
		if err := s.users.WithTx(tx).SetBanned(ctx, report.ReportedUserID, banReason(report, comment)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reported user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ban reported user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Status = outcome
	report.AdminComment = comment
	report.ResolvedBy = &caller.ID
	report.ResolvedAt = &resolvedAt

	ctx = s.logg.WithFields(ctx, map[string]any{
		"report_id":   report.ID.String(),
		"outcome":     string(outcome),
		"user_banned": banned,
	})
	s.logg.Info(ctx, "report.resolved")

	if banned {
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  report.ReportedUserID,
			Type:    enums.NotificationTypeAccountBanned,
			Title:   "Account banned",
			Message: "Your account was banned: " + banReason(report, comment),
		})
	}
	s.notify.Notify(ctx, notifications.Notice{
		UserID:  report.ReporterID,
		Type:    enums.NotificationTypeReportResolved,
		Title:   "Report reviewed",
		Message: fmt.Sprintf("Your report was %s by the moderation team.", outcome),
	})

	return &ResolveResult{Report: FromModel(*report), UserBanned: banned}, nil
}

func banReason(report *models.Report, comment *string) string {
	if comment != nil {
		return *comment
	}
	return "Banned after report " + report.ID.String()
}
