package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/pagination"
)

// ReservationService is the reservation engine as seen by HTTP.
type ReservationService interface {
	CreateReservation(ctx context.Context, eventID, userID uint64, quantity, version int) (*model.ReservationWithEvent, error)
	UpdateReservation(ctx context.Context, reservationID uint64, quantity, version int, requestingUserID uint64) (*model.ReservationWithEvent, error)
	CancelReservationForUser(ctx context.Context, reservationID, userID uint64) error
	GetReservation(ctx context.Context, reservationID, userID uint64) (*model.ReservationWithEvent, error)
	ListUserReservations(ctx context.Context, userID uint64, perPage, page int) (*pagination.Page[model.ReservationWithEvent], error)
}

// ReservationHandler serves /v1/reservations. Every route expects
// JWTAuth to have run.
type ReservationHandler struct {
	svc ReservationService
	log *zap.Logger
}

func NewReservationHandler(svc ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, log: log}
}

// reservationReq accepts raw values so type errors become field
// messages instead of a bind failure.
type reservationReq struct {
	EventID  json.RawMessage `json:"event_id"`
	Quantity json.RawMessage `json:"quantity"`
	Version  json.RawMessage `json:"version"`
}

type reservationInput struct {
	eventID  uint64
	quantity int
	version  int
}

func (r reservationReq) validate(needEvent bool) (reservationInput, validationErrors) {
	var in reservationInput
	errs := validationErrors{}

	if needEvent {
		switch n, present, ok := intField(r.EventID); {
		case !present:
			errs.add("event_id", "The event ID is required.")
		case !ok || n < 1:
			errs.add("event_id", "The event ID must be an integer.")
		default:
			in.eventID = uint64(n)
		}
	}

	switch n, present, ok := intField(r.Quantity); {
	case !present:
		errs.add("quantity", "The quantity field is required.")
	case !ok:
		errs.add("quantity", "The quantity must be an integer.")
	case n < 1:
		errs.add("quantity", "The quantity must be at least 1.")
	case n > 999:
		errs.add("quantity", "The quantity cannot exceed 999.")
	default:
		in.quantity = int(n)
	}

	switch n, present, ok := intField(r.Version); {
	case !present:
		errs.add("version", "The version field is required.")
	case !ok:
		errs.add("version", "The version must be an integer.")
	case n < 1:
		errs.add("version", "The version must be at least 1.")
	default:
		in.version = int(n)
	}

	return in, errs
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	in, errs := req.validate(true)
	if len(errs) > 0 {
		return errs.respond(c)
	}

	res, err := h.svc.CreateReservation(c.Request().Context(), in.eventID, uid, in.quantity, in.version)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PUT /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Message: "Reservation not found", Code: "NOT_FOUND"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	in, errs := req.validate(false)
	if len(errs) > 0 {
		return errs.respond(c)
	}

	res, err := h.svc.UpdateReservation(c.Request().Context(), id, in.quantity, in.version, uid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Message: "Reservation not found", Code: "NOT_FOUND"})
	}
	if err := h.svc.CancelReservationForUser(c.Request().Context(), id, uid); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Cancelled"})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Message: "Reservation not found", Code: "NOT_FOUND"})
	}
	res, err := h.svc.GetReservation(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Mine handles GET /v1/reservations/my-reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	page, err := h.svc.ListUserReservations(c.Request().Context(), uid, queryInt(c, "per_page"), queryInt(c, "page"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	page.SetLinks(absoluteURL(c))
	return c.JSON(http.StatusOK, page)
}
