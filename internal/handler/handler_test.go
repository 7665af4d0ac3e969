package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/pagination"
	"github.com/iliyamo/ticket-booking/internal/service"
)

type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateReservation(ctx context.Context, eventID, userID uint64, quantity, version int) (*model.ReservationWithEvent, error) {
	args := m.Called(ctx, eventID, userID, quantity, version)
	res, _ := args.Get(0).(*model.ReservationWithEvent)
	return res, args.Error(1)
}

func (m *MockReservationService) UpdateReservation(ctx context.Context, reservationID uint64, quantity, version int, requestingUserID uint64) (*model.ReservationWithEvent, error) {
	args := m.Called(ctx, reservationID, quantity, version, requestingUserID)
	res, _ := args.Get(0).(*model.ReservationWithEvent)
	return res, args.Error(1)
}

func (m *MockReservationService) CancelReservationForUser(ctx context.Context, reservationID, userID uint64) error {
	return m.Called(ctx, reservationID, userID).Error(0)
}

func (m *MockReservationService) GetReservation(ctx context.Context, reservationID, userID uint64) (*model.ReservationWithEvent, error) {
	args := m.Called(ctx, reservationID, userID)
	res, _ := args.Get(0).(*model.ReservationWithEvent)
	return res, args.Error(1)
}

func (m *MockReservationService) ListUserReservations(ctx context.Context, userID uint64, perPage, page int) (*pagination.Page[model.ReservationWithEvent], error) {
	args := m.Called(ctx, userID, perPage, page)
	p, _ := args.Get(0).(*pagination.Page[model.ReservationWithEvent])
	return p, args.Error(1)
}

// call runs h with user 7 already authenticated.
func call(h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(7))
	c.Set("role", model.RoleCustomer)
	if len(params) > 0 {
		c.SetParamNames("id")
		c.SetParamValues(params...)
	}
	_ = h(c)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleReservation() *model.ReservationWithEvent {
	return &model.ReservationWithEvent{
		Reservation: model.Reservation{ID: 10, EventID: 1, UserID: 7, Quantity: 3, Status: model.ReservationActive},
		Event:       &model.Event{ID: 1, AvailableTickets: 97, Version: 2},
	}
}

func TestReservationCreate(t *testing.T) {
	svc := new(MockReservationService)
	h := NewReservationHandler(svc, zap.NewNop())
	svc.On("CreateReservation", mock.Anything, uint64(1), uint64(7), 3, 1).Return(sampleReservation(), nil)

	rec := call(h.Create, http.MethodPost, "/v1/reservations", `{"event_id":1,"quantity":3,"version":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["quantity"])
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, float64(2), body["event"].(map[string]any)["version"])
	svc.AssertExpectations(t)
}

func TestReservationCreateValidation(t *testing.T) {
	svc := new(MockReservationService)
	h := NewReservationHandler(svc, zap.NewNop())

	rec := call(h.Create, http.MethodPost, "/v1/reservations", `{"quantity":1000,"version":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, []any{"The event ID is required."}, errs["event_id"])
	assert.Equal(t, []any{"The quantity cannot exceed 999."}, errs["quantity"])
	assert.Equal(t, []any{"The version must be at least 1."}, errs["version"])

	rec = call(h.Create, http.MethodPost, "/v1/reservations", `{"event_id":"1","quantity":"two","version":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs = decode(t, rec)["errors"].(map[string]any)
	assert.NotContains(t, errs, "event_id")
	assert.Equal(t, []any{"The quantity must be an integer."}, errs["quantity"])

	svc.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationErrorMapping(t *testing.T) {
	tests := []struct {
		kind   service.Kind
		status int
	}{
		{service.KindNotFound, http.StatusNotFound},
		{service.KindForbidden, http.StatusForbidden},
		{service.KindInvalidArgument, http.StatusUnprocessableEntity},
		{service.KindLimitExceeded, http.StatusUnprocessableEntity},
		{service.KindCapacityExceeded, http.StatusConflict},
		{service.KindVersionConflict, http.StatusConflict},
		{service.KindAlreadyCancelled, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			svc := new(MockReservationService)
			h := NewReservationHandler(svc, zap.NewNop())
			svc.On("UpdateReservation", mock.Anything, uint64(10), 2, 1, uint64(7)).
				Return(nil, &service.Error{Kind: tt.kind, Message: "msg"})

			rec := call(h.Update, http.MethodPut, "/v1/reservations/10", `{"quantity":2,"version":1}`, "10")
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "msg", body["message"])
			assert.Equal(t, tt.kind.String(), body["code"])
		})
	}
}

func TestReservationInfrastructureErrorIsHidden(t *testing.T) {
	svc := new(MockReservationService)
	h := NewReservationHandler(svc, zap.NewNop())
	svc.On("GetReservation", mock.Anything, uint64(10), uint64(7)).Return(nil, assert.AnError)

	rec := call(h.Get, http.MethodGet, "/v1/reservations/10", "", "10")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestReservationCancel(t *testing.T) {
	svc := new(MockReservationService)
	h := NewReservationHandler(svc, zap.NewNop())
	svc.On("CancelReservationForUser", mock.Anything, uint64(10), uint64(7)).Return(nil)

	rec := call(h.Cancel, http.MethodDelete, "/v1/reservations/10", "", "10")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Cancelled"}`, rec.Body.String())

	rec = call(h.Cancel, http.MethodDelete, "/v1/reservations/abc", "", "abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReservationMineBuildsAbsoluteLinks(t *testing.T) {
	svc := new(MockReservationService)
	h := NewReservationHandler(svc, zap.NewNop())
	items := []model.ReservationWithEvent{*sampleReservation()}
	page := pagination.New(items, 3, pagination.NewRequest(1, 2), service.ReservationsPath)
	svc.On("ListUserReservations", mock.Anything, uint64(7), 1, 2).Return(page, nil)

	rec := call(h.Mine, http.MethodGet, "/v1/reservations/my-reservations?per_page=1&page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	links := body["links"].(map[string]any)
	assert.Equal(t, "http://example.com/v1/reservations/my-reservations?page=3&per_page=1", links["next"])
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
}

func TestUnauthenticated(t *testing.T) {
	h := NewReservationHandler(new(MockReservationService), zap.NewNop())
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/reservations/my-reservations", nil), rec)
	require.NoError(t, h.Mine(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListEvents(ctx context.Context, perPage, page int) (*pagination.Page[model.Event], error) {
	args := m.Called(ctx, perPage, page)
	p, _ := args.Get(0).(*pagination.Page[model.Event])
	return p, args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	args := m.Called(ctx, id)
	ev, _ := args.Get(0).(*model.Event)
	return ev, args.Error(1)
}

func (m *MockEventService) CreateEvent(ctx context.Context, in service.CreateEventInput) (*model.Event, error) {
	args := m.Called(ctx, in)
	ev, _ := args.Get(0).(*model.Event)
	return ev, args.Error(1)
}

func TestEventCreate(t *testing.T) {
	svc := new(MockEventService)
	h := NewEventHandler(svc, zap.NewNop())
	when := time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC)
	svc.On("CreateEvent", mock.Anything, service.CreateEventInput{
		Name: "Gala", Description: "NYE", EventDate: when, TotalTickets: 300,
	}).Return(&model.Event{ID: 5, Name: "Gala", TotalTickets: 300, AvailableTickets: 300, Version: 1}, nil)

	rec := call(h.Create, http.MethodPost, "/v1/events",
		`{"name":"Gala","description":"NYE","event_date":"2026-12-31T20:00:00Z","total_tickets":300}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(300), decode(t, rec)["available_tickets"])
	svc.AssertExpectations(t)
}

func TestEventCreateValidation(t *testing.T) {
	h := NewEventHandler(new(MockEventService), zap.NewNop())
	rec := call(h.Create, http.MethodPost, "/v1/events", `{"event_date":"tomorrow","total_tickets":0,"max_tickets_per_user":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]any)
	for _, field := range []string{"name", "description", "event_date", "total_tickets", "max_tickets_per_user"} {
		assert.Contains(t, errs, field)
	}
}

func TestEventCreateRejectsCountsBeyondColumnRange(t *testing.T) {
	h := NewEventHandler(new(MockEventService), zap.NewNop())
	rec := call(h.Create, http.MethodPost, "/v1/events",
		`{"name":"Gala","description":"NYE","event_date":"2026-12-31T20:00:00Z","total_tickets":2147483648,"max_tickets_per_user":9999999999}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]any)
	assert.Equal(t, []any{"The total tickets may not be greater than 2147483647."}, errs["total_tickets"])
	assert.Equal(t, []any{"The max tickets per user may not be greater than 2147483647."}, errs["max_tickets_per_user"])
}

func TestEventGetNotFound(t *testing.T) {
	svc := new(MockEventService)
	h := NewEventHandler(svc, zap.NewNop())
	svc.On("GetEvent", mock.Anything, uint64(9)).Return(nil, &service.Error{Kind: service.KindNotFound, Message: "Event not found"})

	rec := call(h.Get, http.MethodGet, "/v1/events/9", "", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Event not found","code":"NOT_FOUND"}`, rec.Body.String())
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := call(Health(stubPinger{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(Health(stubPinger{err: assert.AnError}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
