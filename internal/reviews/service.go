package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
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

const workflowSubmit = "review_submit"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, n notifications.Notice)
}

// SubmitInput is the buyer's review of the accepted seller.
type SubmitInput struct {
	OrderID uuid.UUID
	Rating  float64
	Comment *string
}

type ReviewDTO struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     uuid.UUID         `json:"order_id"`
	ReviewerID  uuid.UUID         `json:"reviewer_id"`
	SellerID    uuid.UUID         `json:"seller_id"`
	Rating      int               `json:"rating"`
	Comment     *string           `json:"comment,omitempty"`
	OrderStatus enums.OrderStatus `json:"order_status,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Service covers review submission, which closes an order, and the public
// seller listing.
type Service interface {
	Submit(ctx context.Context, caller auth.Identity, input SubmitInput) (*ReviewDTO, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*types.Page[ReviewDTO], error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	offers  offers.Repository
	tx      txRunner
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.WorkflowMetrics
}

func NewService(repo Repository, orderRepo orders.Repository, offerRepo offers.Repository, tx txRunner, notify notifier, logg *logger.Logger, m *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if offerRepo == nil {
		return nil, fmt.Errorf("offers repository required")
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
		offers:  offerRepo,
		tx:      tx,
		notify:  notify,
		logg:    logg,
		metrics: m,
	}, nil
}

// Submit stores the buyer's review and completes an in-progress order in the
// same transaction.
func (s *service) Submit(ctx context.Context, caller auth.Identity, input SubmitInput) (dto *ReviewDTO, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowSubmit, started, err) }()

	if caller.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rating, err := policy.ValidateRating(input.Rating)
	if err != nil {
		return nil, err
	}
	comment, err := policy.ValidateComment(input.Comment)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := policy.RequireOwner(caller, order.BuyerID, "buyer"); err != nil {
		return nil, err
	}
	if order.AcceptedOfferID == nil ||
		(order.Status != enums.OrderStatusInProgress && order.Status != enums.OrderStatusCompleted) {
		return nil, policy.InvalidTransition("order cannot be reviewed yet", order.Status)
	}

	offer, err := s.offers.FindByID(ctx, *order.AcceptedOfferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.InvalidTransition("accepted offer no longer exists", order.Status)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted offer")
	}

	exists, err := s.repo.ExistsForReviewer(ctx, order.ID, caller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already reviewed")
	}

	review := &models.Review{
		OrderID:    order.ID,
		ReviewerID: caller.ID,
		SellerID:   offer.SellerID,
		Rating:     rating,
		Comment:    comment,
	}
	completed := order.Status == enums.OrderStatusInProgress
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
		}
		if !completed {
			return nil
		}

		orderRepo := s.orders.WithTx(tx)
		moved, err := orderRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusInProgress, enums.OrderStatusCompleted, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !moved {
			current := any(order.Status)
			if fresh, err := orderRepo.FindByID(ctx, order.ID); err == nil {
				current = fresh.Status
			}
			return policy.InvalidTransition("order status changed concurrently", current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"review_id": review.ID.String(),
		"completed": completed,
	})
	s.logg.Info(ctx, "review.submitted")

	if completed {
		link := "/orders/" + order.ID.String()
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  offer.SellerID,
			Type:    enums.NotificationTypeOrderCompleted,
			Title:   "Order completed",
			Message: fmt.Sprintf("The buyer rated your work on %q %d/5.", order.Title, rating),
			Link:    &link,
		})
	}

	out := fromModel(*review)
	out.OrderStatus = enums.OrderStatusCompleted
	return &out, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*types.Page[ReviewDTO], error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListBySeller(ctx, sellerID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	rows, next := pagination.Page(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	items := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromModel(row))
	}
	return &types.Page[ReviewDTO]{Items: items, NextCursor: next}, nil
}

func fromModel(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		OrderID:    r.OrderID,
		ReviewerID: r.ReviewerID,
		SellerID:   r.SellerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
