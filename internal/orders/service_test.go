package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/pkg/auth"
	"github.com/minelance/minelance-backend/pkg/db/dbtest"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/pagination"
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

func (r *recordingNotifier) recipients() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.UserID)
	}
	return out
}

func newTestService(t *testing.T) (Service, *gorm.DB, *recordingNotifier) {
	t.Helper()
	conn := dbtest.Open(t)
	notify := &recordingNotifier{}
	svc, err := NewService(NewRepository(conn), notify, logger.Nop(), nil)
	require.NoError(t, err)
	return svc, conn, notify
}

func identity(u models.User) auth.Identity {
	return auth.Identity{ID: u.ID, Role: u.Role}
}

func acceptOffer(t *testing.T, conn *gorm.DB, order models.Order, sellerID uuid.UUID) {
	t.Helper()
	offer := models.Offer{OrderID: order.ID, SellerID: sellerID, Price: decimal.NewFromInt(80), DeliveryDays: 5, Message: "happy to build it", Status: enums.OfferStatusAccepted}
	require.NoError(t, conn.Create(&offer).Error)
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]any{"accepted_offer_id": offer.ID, "status": enums.OrderStatusInProgress}).Error)
}

func TestServiceCreateValidates(t *testing.T) {
	svc, conn, _ := newTestService(t)
	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"short title", CreateInput{Title: "abc", Description: "a long enough description here", Category: "plugins", Budget: decimal.NewFromInt(10)}, "title"},
		{"short description", CreateInput{Title: "Spawn build", Description: "too short", Category: "builds", Budget: decimal.NewFromInt(10)}, "description"},
		{"bad category", CreateInput{Title: "Spawn build", Description: "a long enough description here", Category: "redstone", Budget: decimal.NewFromInt(10)}, "category"},
		{"zero budget", CreateInput{Title: "Spawn build", Description: "a long enough description here", Category: "builds", Budget: decimal.Zero}, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, identity(buyer), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
			details, ok := pkgerrors.As(err).Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}
}

func TestServiceCreateAndList(t *testing.T) {
	svc, conn, _ := newTestService(t)
	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	ctx := context.Background()

	order, err := svc.Create(ctx, identity(buyer), CreateInput{
		Title:       "  Lobby build  ",
		Description: "Medieval themed lobby with parkour",
		Category:    "builds",
		Budget:      decimal.RequireFromString("250.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lobby build", order.Title)
	assert.Equal(t, enums.OrderStatusOpen, order.Status)

	page, err := svc.ListOpen(ctx, ListInput{Category: "builds"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.ID, page.Items[0].ID)
	assert.Empty(t, page.NextCursor)

	mine, err := svc.ListMine(ctx, identity(buyer), pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)

	_, err = svc.ListOpen(ctx, ListInput{Category: "redstone"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestServiceGetHidesPaymentFromOthers(t *testing.T) {
	svc, conn, _ := newTestService(t)
	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	stranger := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	order := seedOrder(t, conn, buyer.ID, enums.OrderStatusOpen, time.Now().UTC())
	card := "**** 4242"
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"paid_at":     time.Now().UTC(),
		"paid_amount": decimal.NewFromInt(100),
		"payer_card":  card,
	}).Error)

	ctx := context.Background()
	own, err := svc.Get(ctx, identity(buyer), order.ID)
	require.NoError(t, err)
	assert.True(t, own.Paid)
	require.NotNil(t, own.PayerCard)
	assert.Equal(t, card, *own.PayerCard)
	assert.ElementsMatch(t, []enums.OrderStatus{enums.OrderStatusInProgress, enums.OrderStatusDispute}, own.AllowedTransitions)

	other, err := svc.Get(ctx, identity(stranger), order.ID)
	require.NoError(t, err)
	assert.True(t, other.Paid)
	assert.Nil(t, other.PayerCard)

	_, err = svc.Get(ctx, identity(buyer), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestServiceOpenDispute(t *testing.T) {
	svc, conn, notify := newTestService(t)
	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	seller := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	stranger := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	order := seedOrder(t, conn, buyer.ID, enums.OrderStatusOpen, time.Now().UTC())
	acceptOffer(t, conn, order, seller.ID)
	ctx := context.Background()

	_, err := svc.OpenDispute(ctx, identity(stranger), order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	disputed, err := svc.OpenDispute(ctx, identity(seller), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDispute, disputed.Status)
	assert.Equal(t, []uuid.UUID{buyer.ID}, notify.recipients())

	_, err = svc.OpenDispute(ctx, identity(buyer), order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestServiceResolveDispute(t *testing.T) {
	svc, conn, notify := newTestService(t)
	buyer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	seller := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	admin := dbtest.SeedUser(t, conn, enums.UserRoleAdmin)
	moderator := dbtest.SeedUser(t, conn, enums.UserRoleModerator)
	order := seedOrder(t, conn, buyer.ID, enums.OrderStatusOpen, time.Now().UTC())
	acceptOffer(t, conn, order, seller.ID)
	ctx := context.Background()

	input := ResolveDisputeInput{OrderID: order.ID, Outcome: enums.OrderStatusCompleted}

	_, err := svc.ResolveDispute(ctx, identity(admin), input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "order not yet disputed")

	_, err = svc.OpenDispute(ctx, identity(buyer), order.ID)
	require.NoError(t, err)

	_, err = svc.ResolveDispute(ctx, identity(moderator), input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.ResolveDispute(ctx, identity(admin), ResolveDisputeInput{OrderID: order.ID, Outcome: enums.OrderStatusOpen})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	resolved, err := svc.ResolveDispute(ctx, identity(admin), input)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, resolved.Status)

	recipients := notify.recipients()
	assert.Contains(t, recipients, buyer.ID)
	assert.Contains(t, recipients, seller.ID)
}
