package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/policy"
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
	workflowCreate         = "order_create"
	workflowDispute        = "order_dispute"
	workflowResolveDispute = "order_resolve_dispute"
)

type notifier interface {
	Notify(ctx context.Context, n notifications.Notice)
}

// Service covers order creation, browsing and the dispute transitions.
type Service interface {
	Create(ctx context.Context, caller auth.Identity, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, caller auth.Identity, orderID uuid.UUID) (*OrderDetail, error)
	ListOpen(ctx context.Context, input ListInput) (*types.Page[OrderSummary], error)
	ListMine(ctx context.Context, caller auth.Identity, params pagination.Params) (*types.Page[OrderSummary], error)
	OpenDispute(ctx context.Context, caller auth.Identity, orderID uuid.UUID) (*models.Order, error)
	ResolveDispute(ctx context.Context, caller auth.Identity, input ResolveDisputeInput) (*models.Order, error)
}

type service struct {
	repo    Repository
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.WorkflowMetrics
}

// NewService builds the orders service. metrics may be nil.
func NewService(repo Repository, notify notifier, logg *logger.Logger, m *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, notify: notify, logg: logg, metrics: m}, nil
}

func (s *service) Create(ctx context.Context, caller auth.Identity, input CreateInput) (order *models.Order, err error) {
	defer s.observe(workflowCreate, time.Now(), &err)

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title, err := policy.ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	description, err := policy.ValidateDescription(input.Description)
	if err != nil {
		return nil, err
	}
	category, err := policy.ValidateCategory(input.Category)
	if err != nil {
		return nil, err
	}
	if err := policy.ValidatePrice(input.Budget); err != nil {
		return nil, err
	}

	order = &models.Order{
		BuyerID:     caller.ID,
		Title:       title,
		Description: description,
		Category:    category,
		Budget:      input.Budget,
		Status:      enums.OrderStatusOpen,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	ctx = s.logg.WithField(ctx, "order_id", order.ID.String())
	s.logg.Info(ctx, "order.created")
	return order, nil
}

func (s *service) Get(ctx context.Context, caller auth.Identity, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sellerID, err := s.repo.AcceptedSellerID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted seller")
	}

	detail := &OrderDetail{
		OrderSummary:       SummaryFromModel(*order),
		Description:        order.Description,
		AcceptedOfferID:    order.AcceptedOfferID,
		AcceptedSellerID:   sellerID,
		AllowedTransitions: policy.AllowedTransitions(order.Status),
		UpdatedAt:          order.UpdatedAt,
	}
	if caller.ID == order.BuyerID || caller.IsAdmin() {
		detail.PaidAmount = order.PaidAmount
		detail.PaidAt = order.PaidAt
		detail.PayerCard = order.PayerCard
	}
	return detail, nil
}

func (s *service) ListOpen(ctx context.Context, input ListInput) (*types.Page[OrderSummary], error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := ListFilter{Limit: pagination.LimitWithBuffer(input.Limit), Cursor: cursor}
	if input.Category != "" {
		category, err := policy.ValidateCategory(input.Category)
		if err != nil {
			return nil, err
		}
		filter.Category = &category
	}

	rows, err := s.repo.ListOpen(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open orders")
	}
	return toPage(rows, input.Limit), nil
}

func (s *service) ListMine(ctx context.Context, caller auth.Identity, params pagination.Params) (*types.Page[OrderSummary], error) {
	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByBuyer(ctx, caller.ID, ListFilter{Limit: pagination.LimitWithBuffer(params.Limit), Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return toPage(rows, params.Limit), nil
}

// OpenDispute lets the buyer or the accepted seller escalate an order.
func (s *service) OpenDispute(ctx context.Context, caller auth.Identity, orderID uuid.UUID) (order *models.Order, err error) {
	defer s.observe(workflowDispute, time.Now(), &err)

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err = s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sellerID, err := s.repo.AcceptedSellerID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted seller")
	}

	isSeller := sellerID != nil && *sellerID == caller.ID
	if caller.ID != order.BuyerID && !isSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or the accepted seller may open a dispute")
	}
	if err := policy.CheckTransition(order.Status, enums.OrderStatusDispute); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, order, enums.OrderStatusDispute); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String()})
	s.logg.Info(ctx, "order.dispute_opened")

	counterpart := sellerID
	if isSeller {
		counterpart = &order.BuyerID
	}
	if counterpart != nil {
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  *counterpart,
			Type:    enums.NotificationTypeOrderDispute,
			Title:   "Order disputed",
			Message: fmt.Sprintf("A dispute was opened on order %q.", order.Title),
			Link:    orderLink(order.ID),
		})
	}
	return order, nil
}

// ResolveDispute closes a dispute as completed or sends the order back to
// in_progress. Admin only.
func (s *service) ResolveDispute(ctx context.Context, caller auth.Identity, input ResolveDisputeInput) (order *models.Order, err error) {
	defer s.observe(workflowResolveDispute, time.Now(), &err)

	if err := policy.RequireRole(caller, enums.UserRoleAdmin); err != nil {
		return nil, err
	}
	if input.Outcome != enums.OrderStatusCompleted && input.Outcome != enums.OrderStatusInProgress {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome must be completed or in_progress").
			WithDetails(map[string]string{"status": "must be completed or in_progress"})
	}

	order, err = s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDispute {
		return nil, policy.InvalidTransition("order is not in dispute", order.Status)
	}
	if err := policy.CheckTransition(order.Status, input.Outcome); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, input.Outcome); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"outcome":  string(input.Outcome),
	})
	s.logg.Info(ctx, "order.dispute_resolved")

	sellerID, err := s.repo.AcceptedSellerID(ctx, order.ID)
	if err != nil {
		// The transition already committed; only the seller notice is lost.
		s.logg.Error(ctx, "order.dispute_seller_lookup_failed", err)
	}
	typ := enums.NotificationTypeOrderDispute
	if input.Outcome == enums.OrderStatusCompleted {
		typ = enums.NotificationTypeOrderCompleted
	}
	message := fmt.Sprintf("The dispute on order %q was resolved as %s.", order.Title, input.Outcome)
	recipients := []uuid.UUID{order.BuyerID}
	if sellerID != nil {
		recipients = append(recipients, *sellerID)
	}
	for _, userID := range recipients {
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  userID,
			Type:    typ,
			Title:   "Dispute resolved",
			Message: message,
			Link:    orderLink(order.ID),
		})
	}
	return order, nil
}

// transition applies a conditional status update and refreshes order. A lost
// race reports the status the order actually holds.
func (s *service) transition(ctx context.Context, order *models.Order, next enums.OrderStatus) error {
	updated, err := s.repo.UpdateStatus(ctx, order.ID, order.Status, next, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		current := order.Status
		if fresh, err := s.repo.FindByID(ctx, order.ID); err == nil {
			current = fresh.Status
		}
		return policy.InvalidTransition("order status changed concurrently", current)
	}
	order.Status = next
	return nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) observe(workflow string, started time.Time, errp *error) {
	s.metrics.Observe(workflow, started, *errp)
}

func toPage(rows []models.Order, limit int) *types.Page[OrderSummary] {
	rows, next := pagination.Page(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, SummaryFromModel(row))
	}
	return &types.Page[OrderSummary]{Items: items, NextCursor: next}
}

func orderLink(id uuid.UUID) *string {
	link := "/orders/" + id.String()
	return &link
}
