package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/api/middleware"
	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/pkg/auth"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/pagination"
	"github.com/minelance/minelance-backend/pkg/types"
)

var testLogger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

type testOrdersService struct {
	orders.Service
	createFn  func(ctx context.Context, caller auth.Identity, input orders.CreateInput) (*models.Order, error)
	resolveFn func(ctx context.Context, caller auth.Identity, input orders.ResolveDisputeInput) (*models.Order, error)
}

func (s *testOrdersService) Create(ctx context.Context, caller auth.Identity, input orders.CreateInput) (*models.Order, error) {
	return s.createFn(ctx, caller, input)
}

func (s *testOrdersService) ResolveDispute(ctx context.Context, caller auth.Identity, input orders.ResolveDisputeInput) (*models.Order, error) {
	return s.resolveFn(ctx, caller, input)
}

type testOffersService struct {
	offers.Service
	acceptFn func(ctx context.Context, caller auth.Identity, input offers.AcceptInput) (*offers.AcceptResult, error)
}

func (s *testOffersService) Accept(ctx context.Context, caller auth.Identity, input offers.AcceptInput) (*offers.AcceptResult, error) {
	return s.acceptFn(ctx, caller, input)
}

type testNotificationsService struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*types.Page[models.Notification], error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*types.Page[models.Notification], error) {
	return s.listFn(ctx, params)
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.markReadFn(ctx, userID, notificationID)
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.markAllReadFn(ctx, userID)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func authedRequest(method, target, body string, identity auth.Identity, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithIdentity(req.Context(), identity)
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func decodeErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestCreateOrderSuccess(t *testing.T) {
	buyer := auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}
	svc := &testOrdersService{
		createFn: func(ctx context.Context, caller auth.Identity, input orders.CreateInput) (*models.Order, error) {
			if caller.ID != buyer.ID {
				t.Fatalf("unexpected caller %s", caller.ID)
			}
			if input.Budget.String() != "500" || input.Category != "builds" {
				t.Fatalf("unexpected input %+v", input)
			}
			return &models.Order{ID: uuid.New(), BuyerID: caller.ID, Title: input.Title, Category: enums.OrderCategoryBuilds, Budget: input.Budget, Status: enums.OrderStatusOpen}, nil
		},
	}

	body := `{"title":"Medieval castle spawn","description":"A 200x200 spawn castle with a market square","category":"builds","budget":"500"}`
	resp := httptest.NewRecorder()
	CreateOrder(svc, testLogger)(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, buyer, nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data orders.OrderSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusOpen || envelope.Data.BuyerID != buyer.ID {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	svc := &testOrdersService{}
	resp := httptest.NewRecorder()
	body := `{"title":"x","description":"y","category":"builds","budget":"10","status":"completed"}`
	CreateOrder(svc, testLogger)(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}, nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	CreateOrder(&testOrdersService{}, testLogger)(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestResolveDisputeValidatesOutcome(t *testing.T) {
	admin := auth.Identity{ID: uuid.New(), Role: enums.UserRoleAdmin}
	orderID := uuid.New()
	svc := &testOrdersService{
		resolveFn: func(ctx context.Context, caller auth.Identity, input orders.ResolveDisputeInput) (*models.Order, error) {
			if input.OrderID != orderID || input.Outcome != enums.OrderStatusCompleted {
				t.Fatalf("unexpected input %+v", input)
			}
			return &models.Order{ID: orderID, Status: enums.OrderStatusCompleted}, nil
		},
	}
	params := map[string]string{"orderId": orderID.String()}

	resp := httptest.NewRecorder()
	ResolveDispute(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", `{"outcome":"cancelled"}`, admin, params))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported outcome, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	ResolveDispute(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", `{"outcome":"completed"}`, admin, params))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestAcceptOfferPassesRouteParams(t *testing.T) {
	buyer := auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}
	orderID, offerID := uuid.New(), uuid.New()
	svc := &testOffersService{
		acceptFn: func(ctx context.Context, caller auth.Identity, input offers.AcceptInput) (*offers.AcceptResult, error) {
			if input.OrderID != orderID || input.OfferID != offerID {
				t.Fatalf("unexpected input %+v", input)
			}
			return &offers.AcceptResult{OrderID: orderID, OrderStatus: enums.OrderStatusInProgress}, nil
		},
	}

	resp := httptest.NewRecorder()
	params := map[string]string{"orderId": orderID.String(), "offerId": offerID.String()}
	AcceptOffer(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", "", buyer, params))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestAcceptOfferMapsStateConflict(t *testing.T) {
	svc := &testOffersService{
		acceptFn: func(ctx context.Context, caller auth.Identity, input offers.AcceptInput) (*offers.AcceptResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open")
		},
	}

	resp := httptest.NewRecorder()
	params := map[string]string{"orderId": uuid.NewString(), "offerId": uuid.NewString()}
	AcceptOffer(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", "", auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}, params))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestAcceptOfferRejectsBadOfferID(t *testing.T) {
	resp := httptest.NewRecorder()
	params := map[string]string{"orderId": uuid.NewString(), "offerId": "nope"}
	AcceptOffer(&testOffersService{}, testLogger)(resp, authedRequest(http.MethodPost, "/", "", auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}, params))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListNotificationsScopesToCaller(t *testing.T) {
	caller := auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*types.Page[models.Notification], error) {
			if params.UserID != caller.ID {
				t.Fatalf("unexpected user %s", params.UserID)
			}
			if !params.UnreadOnly || params.Page.Limit != 5 {
				t.Fatalf("unexpected params %+v", params)
			}
			return &types.Page[models.Notification]{Items: []models.Notification{}}, nil
		},
	}

	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger)(resp, authedRequest(http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true", "", caller, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	resp := httptest.NewRecorder()
	target := "/api/v1/notifications?limit=" + strconv.Itoa(pagination.MaxLimit+1)
	ListNotifications(&testNotificationsService{}, testLogger)(resp, authedRequest(http.MethodGet, target, "", auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	caller := auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}
	notificationID := uuid.New()
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, userID, nid uuid.UUID) error {
			if userID != caller.ID || nid != notificationID {
				t.Fatalf("unexpected ids %s %s", userID, nid)
			}
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", "", caller, map[string]string{"notificationId": notificationID.String()}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 3, nil
		},
	}

	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger)(resp, authedRequest(http.MethodPost, "/", "", auth.Identity{ID: uuid.New(), Role: enums.UserRoleUser}, nil))
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["updated"] != 3 {
		t.Fatalf("expected 3 updated, got %v", envelope.Data)
	}
}

func TestHealthReady(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthReady(stubPinger{}, stubPinger{}, testLogger)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(stubPinger{}, stubPinger{err: errors.New("connection refused")}, testLogger)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
