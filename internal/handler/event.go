package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/pagination"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// EventService lists, reads and creates events.
type EventService interface {
	ListEvents(ctx context.Context, perPage, page int) (*pagination.Page[model.Event], error)
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	CreateEvent(ctx context.Context, in service.CreateEventInput) (*model.Event, error)
}

type EventHandler struct {
	svc EventService
	log *zap.Logger
}

func NewEventHandler(svc EventService, log *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: log}
}

// maxTicketCount is the largest value the INT ticket columns hold.
const maxTicketCount = math.MaxInt32

type createEventReq struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	EventDate         string          `json:"event_date"`
	TotalTickets      json.RawMessage `json:"total_tickets"`
	MaxTicketsPerUser json.RawMessage `json:"max_tickets_per_user"`
}

// eventDateLayouts are tried in order when parsing event_date.
var eventDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseEventDate(s string) (time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// List handles GET /v1/events?per_page=&page=.
func (h *EventHandler) List(c echo.Context) error {
	page, err := h.svc.ListEvents(c.Request().Context(), queryInt(c, "per_page"), queryInt(c, "page"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	page.SetLinks(absoluteURL(c))
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/events/:id. Clients call it after a version
// conflict to pick up the current version.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Message: "Event not found", Code: "NOT_FOUND"})
	}
	ev, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Create handles POST /v1/events (organizers only).
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	errs := validationErrors{}
	if strings.TrimSpace(req.Name) == "" {
		errs.add("name", "The name field is required.")
	}
	if strings.TrimSpace(req.Description) == "" {
		errs.add("description", "The description field is required.")
	}
	date, ok := parseEventDate(strings.TrimSpace(req.EventDate))
	if !ok {
		errs.add("event_date", "The event date must be a valid date.")
	}
	total, present, ok := intField(req.TotalTickets)
	switch {
	case !present:
		errs.add("total_tickets", "The total tickets field is required.")
	case !ok || total < 1:
		errs.add("total_tickets", "The total tickets must be at least 1.")
	case total > maxTicketCount:
		errs.add("total_tickets", fmt.Sprintf("The total tickets may not be greater than %d.", maxTicketCount))
	}
	maxPer, present, ok := intField(req.MaxTicketsPerUser)
	switch {
	case !present:
	case !ok || maxPer < 1:
		errs.add("max_tickets_per_user", "The max tickets per user must be at least 1.")
	case maxPer > maxTicketCount:
		errs.add("max_tickets_per_user", fmt.Sprintf("The max tickets per user may not be greater than %d.", maxTicketCount))
	}
	if len(errs) > 0 {
		return errs.respond(c)
	}

	ev, err := h.svc.CreateEvent(c.Request().Context(), service.CreateEventInput{
		Name:              req.Name,
		Description:       req.Description,
		EventDate:         date,
		TotalTickets:      int(total),
		MaxTicketsPerUser: int(maxPer),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, ev)
}
