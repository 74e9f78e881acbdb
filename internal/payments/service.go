package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/metrics"
)

const (
	workflowConfirm  = "payment_confirm"
	maxOperationID   = 128
	cardVisibleChars = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, n notifications.Notice)
}

// Event is a decoded gateway payment notification.
type Event struct {
	OperationID string          `json:"operation_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	PayerCard   string          `json:"payer_card"`
}

// Result reports what a delivery changed. A replay or a second operation on
// a paid order has Applied false.
type Result struct {
	OrderID  uuid.UUID `json:"order_id"`
	Applied  bool      `json:"applied"`
	Replayed bool      `json:"replayed"`
}

// Service confirms gateway payments against orders.
type Service interface {
	Confirm(ctx context.Context, event Event) (*Result, error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	offers  offers.Repository
	tx      txRunner
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.WorkflowMetrics
	now     func() time.Time
}

// NewService builds the payment confirmation workflow. metrics may be nil.
func NewService(repo Repository, orderRepo orders.Repository, offerRepo offers.Repository, tx txRunner, notify notifier, logg *logger.Logger, m *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Confirm stamps payment metadata on the order exactly once. The event row is
// written first so a redelivered operation id never touches an order again;
// reusing it for another order is a conflict. Payment never changes the order
// status.
func (s *service) Confirm(ctx context.Context, event Event) (result *Result, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(workflowConfirm, started, err) }()

	if err := validateEvent(&event); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     event.OrderID.String(),
		"operation_id": event.OperationID,
	})

	var (
		order    *models.Order
		applied  bool
		recorded bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)

		var err error
		order, err = orderRepo.FindByID(ctx, event.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		paymentRepo := s.repo.WithTx(tx)
		paymentEvent := &models.PaymentEvent{
			OperationID: event.OperationID,
			OrderID:     order.ID,
			Amount:      event.Amount,
			PayerCard:   event.PayerCard,
		}
		recorded, err = paymentRepo.InsertEvent(ctx, paymentEvent)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment event")
		}
		if !recorded {
			existing, err := paymentRepo.FindByOperationID(ctx, event.OperationID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment event")
			}
			if existing.OrderID != order.ID {
				return pkgerrors.New(pkgerrors.CodeConflict, "operation id already used for another order")
			}
			return nil
		}

		paidAt := s.now()
		applied, err = orderRepo.MarkPaid(ctx, order.ID, orders.PaymentRecord{
			OperationID: event.OperationID,
			Amount:      event.Amount,
			PayerCard:   event.PayerCard,
			PaidAt:      paidAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if applied {
			if err := paymentRepo.MarkApplied(ctx, paymentEvent.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment event applied")
			}
			order.PaidAt = &paidAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result = &Result{OrderID: order.ID, Applied: applied, Replayed: !recorded}
	switch {
	case !recorded:
		s.logg.Warn(ctx, "payment.replayed")
		return result, nil
	case !applied:
		s.logg.Warn(ctx, "payment.order_already_paid")
		return result, nil
	}
	s.logg.Info(ctx, "payment.confirmed")

	recipients := []uuid.UUID{order.BuyerID}
	if offer := s.acceptedOffer(ctx, order, event.Amount); offer != nil {
		recipients = append(recipients, offer.SellerID)
	}
	message := fmt.Sprintf("Payment of %s received for %q.", event.Amount.StringFixed(2), order.Title)
	link := "/orders/" + order.ID.String()
	for _, userID := range recipients {
		s.notify.Notify(ctx, notifications.Notice{
			UserID:  userID,
			Type:    enums.NotificationTypePaymentReceived,
			Title:   "Payment received",
			Message: message,
			Link:    &link,
		})
	}
	return result, nil
}

// acceptedOffer loads the accepted offer, if any, and warns when the paid
// amount differs from its price. The gateway amount is kept either way.
func (s *service) acceptedOffer(ctx context.Context, order *models.Order, amount decimal.Decimal) *models.Offer {
	if order.AcceptedOfferID == nil {
		return nil
	}
	offer, err := s.offers.FindByID(ctx, *order.AcceptedOfferID)
	if err != nil {
		s.logg.Error(ctx, "payment.accepted_offer_lookup_failed", err)
		return nil
	}
	if !offer.Price.Equal(amount) {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"offer_price": offer.Price.String(),
			"paid_amount": amount.String(),
		})
		s.logg.Warn(ctx, "payment.amount_mismatch")
	}
	return offer
}

func validateEvent(event *Event) error {
	event.OperationID = strings.TrimSpace(event.OperationID)
	event.PayerCard = maskCard(strings.TrimSpace(event.PayerCard))

	details := map[string]string{}
	if event.OperationID == "" || utf8.RuneCountInString(event.OperationID) > maxOperationID {
		details["operation_id"] = "operation id is required"
	}
	if event.OrderID == uuid.Nil {
		details["order_id"] = "order id is required"
	}
	switch {
	case !event.Amount.IsPositive():
		details["amount"] = "amount must be greater than 0"
	case !event.Amount.Equal(event.Amount.Truncate(2)):
		details["amount"] = "amount must have at most 2 decimal places"
	}
	if event.PayerCard == "" {
		details["payer_card"] = "payer card is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment event").WithDetails(details)
	}
	return nil
}

// maskCard keeps only the last four characters of a card number. Values the
// gateway already masked pass through.
func maskCard(card string) string {
	if card == "" || strings.ContainsAny(card, "*•xX") {
		return card
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, card)
	if len(digits) <= cardVisibleChars {
		return card
	}
	return "**** " + digits[len(digits)-cardVisibleChars:]
}
