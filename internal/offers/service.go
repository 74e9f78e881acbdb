package offers

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
	"github.com/minelance/minelance-backend/pkg/auth"
	"github.com/minelance/minelance-backend/pkg/db"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/metrics"
	"github.com/minelance/minelance-backend/pkg/pagination"
	"github.com/minelance/minelance-backend/pkg/types"
)

const (
	workflowSubmit = "offer_submit"
	workflowAccept = "offer_accept"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, n notifications.Notice)
}

// Service covers offer submission, listing and the acceptance workflow.
type Service interface {
	Submit(ctx context.Context, caller auth.Identity, input SubmitInput) (*OfferDTO, error)
	List(ctx context.Context, caller auth.Identity, orderID uuid.UUID, params pagination.Params) (*types.Page[OfferDTO], error)
	Accept(ctx context.Context, caller auth.Identity, input AcceptInput) (*AcceptResult, error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.WorkflowMetrics
}

// NewService builds the offers service. metrics may be nil.
func NewService(repo Repository, orderRepo orders.Repository, tx txRunner, notify notifier, logg *logger.Logger, m *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
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
		orders:  orderRepo,
		tx:      tx,
		notify:  notify,
		logg:    logg,
		metrics: m,
	}, nil
}

func (s *service) Submit(ctx context.Context, caller auth.Identity, input SubmitInput) (dto *OfferDTO, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowSubmit, started, err) }()

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	message, err := policy.ValidateOfferMessage(input.Message)
	if err != nil {
		return nil, err
	}
	if err := policy.ValidateDeliveryDays(input.DeliveryDays); err != nil {
		return nil, err
	}

	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		order *models.Order
		offer *models.Offer
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		offerRepo := s.repo.WithTx(tx)

		var err error
		order, err = lockOrder(ctx, s.orders.WithTx(tx), input.OrderID)
		if err != nil {
			return err
		}
		if order.BuyerID == caller.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "buyers cannot bid on their own order")
		}
		if order.Status != enums.OrderStatusOpen {
			return policy.InvalidTransition("order is not accepting offers", order.Status)
		}
		if err := policy.ValidateOfferPrice(input.Price, order.Budget); err != nil {
			return err
		}

		pending, err := offerRepo.HasPendingFromSeller(ctx, order.ID, caller.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending offers")
		}
		if pending {
			return pkgerrors.New(pkgerrors.CodeConflict, "you already have a pending offer on this order")
		}

		offer = &models.Offer{
			OrderID:      order.ID,
			SellerID:     caller.ID,
			Price:        input.Price,
			DeliveryDays: input.DeliveryDays,
			Message:      message,
			Status:       enums.OfferStatusPending,
		}
		if err := offerRepo.Create(ctx, offer); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "you already have a pending offer on this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"offer_id": offer.ID.String(),
	})
	s.logg.Info(ctx, "offer.submitted")

	s.notify.Notify(ctx, notifications.Notice{
		UserID:  order.BuyerID,
		Type:    enums.NotificationTypeNewOffer,
		Title:   "New offer",
		Message: fmt.Sprintf("You received an offer of %s for %q.", offer.Price.StringFixed(2), order.Title),
		Link:    orderLink(order.ID),
	})

	out := FromModel(*offer)
	return &out, nil
}

// List shows every offer to the buyer and staff; sellers only see their own.
func (s *service) List(ctx context.Context, caller auth.Identity, orderID uuid.UUID, params pagination.Params) (*types.Page[OfferDTO], error) {
	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := ListFilter{Limit: pagination.LimitWithBuffer(params.Limit), Cursor: cursor}
	if caller.ID != order.BuyerID && !caller.HasRole(enums.UserRoleAdmin, enums.UserRoleModerator) {
		filter.SellerID = &caller.ID
	}

	rows, err := s.repo.ListByOrder(ctx, order.ID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	rows, next := pagination.Page(rows, params.Limit, func(o models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OfferDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	return &types.Page[OfferDTO]{Items: items, NextCursor: next}, nil
}

// Accept moves the order to in_progress with the offer accepted and every
// competing pending offer rejected in one transaction holding the order row
// lock. Sellers are
// notified after commit.
func (s *service) Accept(ctx context.Context, caller auth.Identity, input AcceptInput) (result *AcceptResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowAccept, started, err) }()

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OfferID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}

	offer, err := s.repo.FindByID(ctx, input.OfferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if input.OrderID != uuid.Nil && offer.OrderID != input.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}

	order, err := s.loadOrder(ctx, offer.OrderID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireOwner(caller, order.BuyerID, "buyer"); err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusOpen {
		return nil, policy.InvalidTransition("order is not open", order.Status)
	}
	if err := policy.CheckTransition(order.Status, enums.OrderStatusInProgress); err != nil {
		return nil, err
	}
	if offer.Status != enums.OfferStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer pending").
			WithDetails(map[string]any{"offer_status": string(offer.Status)})
	}

	var rejected []models.Offer
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		offerRepo := s.repo.WithTx(tx)

		locked, err := lockOrder(ctx, orderRepo, order.ID)
		if err != nil {
			return err
		}
		if locked.Status != enums.OrderStatusOpen {
			return policy.InvalidTransition("order is not open", locked.Status)
		}

		moved, err := orderRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusOpen, enums.OrderStatusInProgress,
			map[string]any{"accepted_offer_id": offer.ID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			current := any(order.Status)
			if fresh, err := orderRepo.FindByID(ctx, order.ID); err == nil {
				current = fresh.Status
			}
			return policy.InvalidTransition("order is not open", current)
		}

		accepted, err := offerRepo.UpdateStatus(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return policy.InvalidTransition("order already has an accepted offer", enums.OrderStatusInProgress)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if !accepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer pending")
		}

		rejected, err = offerRepo.RejectPendingExcept(ctx, order.ID, offer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject competing offers")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	offer.Status = enums.OfferStatusAccepted
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":        order.ID.String(),
		"offer_id":        offer.ID.String(),
		"rejected_offers": len(rejected),
	})
	s.logg.Info(ctx, "offer.accepted")

	link := orderLink(order.ID)
	s.notify.Notify(ctx, notifications.Notice{
		UserID:  offer.SellerID,
		Type:    enums.NotificationTypeOfferAccepted,
		Title:   "Offer accepted",
		Message: fmt.Sprintf("Your offer on %q was accepted.", order.Title),
		Link:    link,
	})
	for _, r := range rejected {
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  r.SellerID,
			Type:    enums.NotificationTypeOfferRejected,
			Title:   "Offer declined",
			Message: fmt.Sprintf("The buyer of %q chose another offer.", order.Title),
			Link:    link,
		})
	}

	return &AcceptResult{
		OrderID:        order.ID,
		OrderStatus:    enums.OrderStatusInProgress,
		Offer:          FromModel(*offer),
		RejectedOffers: len(rejected),
	}, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// lockOrder reads the order under a row lock so offer writes serialize with
// status changes on the same order.
func lockOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func orderLink(id uuid.UUID) *string {
	link := "/orders/" + id.String()
	return &link
}
