package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/pagination"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// EventCatalog is the event store used for browsing and creation.
type EventCatalog interface {
	FindByID(ctx context.Context, id uint64) (*model.Event, error)
	Create(ctx context.Context, ev *model.Event) error
	Paginate(ctx context.Context, limit, offset int) ([]model.Event, int, error)
}

// EventsPath is the default base for event list pagination links.
const EventsPath = "/v1/events"

// EventService lists, reads and creates events.
type EventService struct {
	events   EventCatalog
	listPath string
}

func NewEventService(events EventCatalog) *EventService {
	return &EventService{events: events, listPath: EventsPath}
}

// CreateEventInput carries the fields accepted when creating an event.
// MaxTicketsPerUser of zero selects the default cap.
type CreateEventInput struct {
	Name              string
	Description       string
	EventDate         time.Time
	TotalTickets      int
	MaxTicketsPerUser int
}

// ListEvents returns one page of events, soonest first.
func (s *EventService) ListEvents(ctx context.Context, perPage, page int) (*pagination.Page[model.Event], error) {
	req := pagination.NewRequest(perPage, page)
	items, total, err := s.events.Paginate(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return pagination.New(items, total, req, s.listPath), nil
}

// GetEvent returns the current state of an event, including the
// version a client needs before reserving.
func (s *EventService) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgEventNotFound)
		}
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return ev, nil
}

// CreateEvent stores a new event with every ticket available and
// version 1.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (*model.Event, error) {
	name := strings.TrimSpace(in.Name)
	desc := strings.TrimSpace(in.Description)
	switch {
	case name == "":
		return nil, newError(KindInvalidArgument, "Name is required")
	case desc == "":
		return nil, newError(KindInvalidArgument, "Description is required")
	case in.EventDate.IsZero():
		return nil, newError(KindInvalidArgument, "Event date is required")
	case in.TotalTickets < 1:
		return nil, newError(KindInvalidArgument, "Total tickets must be at least 1")
	case in.MaxTicketsPerUser < 0:
		return nil, newError(KindInvalidArgument, "Max tickets per user must be at least 1")
	}
	maxPer := in.MaxTicketsPerUser
	if maxPer == 0 {
		maxPer = model.DefaultMaxTicketsPerUser
	}

	ev := &model.Event{
		Name:              name,
		Description:       desc,
		EventDate:         in.EventDate.UTC(),
		TotalTickets:      in.TotalTickets,
		AvailableTickets:  in.TotalTickets,
		MaxTicketsPerUser: maxPer,
		Version:           1,
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return ev, nil
}
