package payments

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/pkg/db/dbtest"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notifications.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n notifications.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type fixture struct {
	svc    Service
	conn   *gorm.DB
	notify *recordingNotifier
	buyer  models.User
	seller models.User
	order  models.Order
}

func newFixture(t *testing.T, status enums.OrderStatus, withOffer bool) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	notify := &recordingNotifier{}
	svc, err := NewService(NewRepository(conn), orders.NewRepository(conn), offers.NewRepository(conn), client, notify, logger.Nop(), nil)
	require.NoError(t, err)

	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	seller := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	order := models.Order{
		BuyerID:     buyer.ID,
		Title:       "Economy plugin config",
		Description: "Configure EssentialsX economy and shops",
		Category:    enums.OrderCategoryConfiguration,
		Budget:      decimal.NewFromInt(60),
		Status:      status,
	}
	require.NoError(t, conn.Create(&order).Error)
	if withOffer {
		offer := models.Offer{OrderID: order.ID, SellerID: seller.ID, Price: decimal.NewFromInt(50), DeliveryDays: 2, Message: "Configured dozens of these", Status: enums.OfferStatusAccepted}
		require.NoError(t, conn.Create(&offer).Error)
		require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("accepted_offer_id", offer.ID).Error)
		order.AcceptedOfferID = &offer.ID
	}
	return &fixture{svc: svc, conn: conn, notify: notify, buyer: buyer, seller: seller, order: order}
}

func (f *fixture) reload(t *testing.T) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	return order
}

func (f *fixture) event(operationID string) Event {
	return Event{
		OperationID: operationID,
		OrderID:     f.order.ID,
		Amount:      decimal.NewFromInt(50),
		PayerCard:   "4111 1111 1111 4242",
	}
}

func TestConfirmStampsPaymentOnce(t *testing.T) {
	f := newFixture(t, enums.OrderStatusInProgress, true)
	ctx := context.Background()

	result, err := f.svc.Confirm(ctx, f.event("op-100"))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Replayed)

	paid := f.reload(t)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, enums.OrderStatusInProgress, paid.Status)
	require.NotNil(t, paid.PayerCard)
	assert.Equal(t, "**** 4242", *paid.PayerCard)
	assert.Equal(t, 2, f.notify.count())

	replay, err := f.svc.Confirm(ctx, f.event("op-100"))
	require.NoError(t, err)
	assert.False(t, replay.Applied)
	assert.True(t, replay.Replayed)

	again := f.reload(t)
	assert.True(t, paid.PaidAt.Equal(*again.PaidAt))
	assert.Equal(t, 2, f.notify.count())

	var events int64
	require.NoError(t, f.conn.Model(&models.PaymentEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestConfirmSecondOperationOnPaidOrder(t *testing.T) {
	f := newFixture(t, enums.OrderStatusInProgress, true)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, f.event("op-1"))
	require.NoError(t, err)

	result, err := f.svc.Confirm(ctx, f.event("op-2"))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.False(t, result.Replayed)

	order := f.reload(t)
	require.NotNil(t, order.PaymentOperationID)
	assert.Equal(t, "op-1", *order.PaymentOperationID)
}

func TestConfirmRejectsOperationReusedOnAnotherOrder(t *testing.T) {
	f := newFixture(t, enums.OrderStatusInProgress, true)
	ctx := context.Background()

	other := models.Order{
		BuyerID:     f.buyer.ID,
		Title:       "Spawn build",
		Description: "Medieval spawn with a market square",
		Category:    enums.OrderCategoryBuilds,
		Budget:      decimal.NewFromInt(80),
		Status:      enums.OrderStatusInProgress,
	}
	require.NoError(t, f.conn.Create(&other).Error)

	_, err := f.svc.Confirm(ctx, f.event("op-1"))
	require.NoError(t, err)

	reused := f.event("op-1")
	reused.OrderID = other.ID
	_, err = f.svc.Confirm(ctx, reused)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	var reloaded models.Order
	require.NoError(t, f.conn.First(&reloaded, "id = ?", other.ID).Error)
	assert.False(t, reloaded.IsPaid())
	assert.Nil(t, reloaded.PaymentOperationID)
	assert.Equal(t, 2, f.notify.count())

	var event models.PaymentEvent
	require.NoError(t, f.conn.First(&event, "operation_id = ?", "op-1").Error)
	assert.Equal(t, f.order.ID, event.OrderID)
	assert.True(t, event.Applied)
}

func TestConfirmDoesNotMoveStatus(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusOpen, enums.OrderStatusCompleted, enums.OrderStatusDispute} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, status, false)
			result, err := f.svc.Confirm(context.Background(), f.event("op-"+string(status)))
			require.NoError(t, err)
			assert.True(t, result.Applied)

			order := f.reload(t)
			assert.Equal(t, status, order.Status)
			assert.True(t, order.IsPaid())
			assert.Equal(t, 1, f.notify.count(), "only the buyer without an accepted offer")
		})
	}
}

func TestConfirmUnknownOrder(t *testing.T) {
	f := newFixture(t, enums.OrderStatusOpen, false)
	event := f.event("op-x")
	event.OrderID = uuid.New()

	_, err := f.svc.Confirm(context.Background(), event)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	var events int64
	require.NoError(t, f.conn.Model(&models.PaymentEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestConfirmValidatesEvent(t *testing.T) {
	f := newFixture(t, enums.OrderStatusOpen, false)

	cases := map[string]func(e *Event){
		"zero amount":      func(e *Event) { e.Amount = decimal.Zero },
		"negative amount":  func(e *Event) { e.Amount = decimal.NewFromInt(-5) },
		"sub-cent amount":  func(e *Event) { e.Amount = decimal.RequireFromString("0.001") },
		"three decimals":   func(e *Event) { e.Amount = decimal.RequireFromString("12.345") },
		"missing op":       func(e *Event) { e.OperationID = "  " },
		"missing order id": func(e *Event) { e.OrderID = uuid.Nil },
		"missing card":     func(e *Event) { e.PayerCard = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := f.event("op-v")
			mutate(&event)
			_, err := f.svc.Confirm(context.Background(), event)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}
	assert.False(t, f.reload(t).IsPaid())
}

func TestMaskCard(t *testing.T) {
	cases := map[string]string{
		"4111111111114242":    "**** 4242",
		"4111-1111-1111-4242": "**** 4242",
		"**** 4242":           "**** 4242",
		"4242":                "4242",
		"":                    "",
	}
	for in, want := range cases {
		if got := maskCard(in); got != want {
			t.Fatalf("maskCard(%q) = %q, want %q", in, got, want)
		}
	}
}
