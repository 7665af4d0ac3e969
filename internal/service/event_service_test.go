package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

type MockEventCatalog struct {
	mock.Mock
}

func (m *MockEventCatalog) FindByID(ctx context.Context, id uint64) (*model.Event, error) {
	args := m.Called(ctx, id)
	if ev := args.Get(0); ev != nil {
		return ev.(*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventCatalog) Create(ctx context.Context, ev *model.Event) error {
	args := m.Called(ctx, ev)
	if args.Error(0) == nil {
		ev.ID = 42
	}
	return args.Error(0)
}

func (m *MockEventCatalog) Paginate(ctx context.Context, limit, offset int) ([]model.Event, int, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.Event), args.Int(1), args.Error(2)
}

func TestCreateEvent_Defaults(t *testing.T) {
	catalog := new(MockEventCatalog)
	svc := NewEventService(catalog)
	when := time.Date(2026, 12, 1, 19, 0, 0, 0, time.UTC)

	catalog.On("Create", mock.Anything, mock.MatchedBy(func(ev *model.Event) bool {
		return ev.AvailableTickets == 250 && ev.TotalTickets == 250 &&
			ev.Version == 1 && ev.MaxTicketsPerUser == model.DefaultMaxTicketsPerUser
	})).Return(nil)

	ev, err := svc.CreateEvent(context.Background(), CreateEventInput{
		Name: " Concert ", Description: "Live", EventDate: when, TotalTickets: 250,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ev.ID)
	assert.Equal(t, "Concert", ev.Name)
	catalog.AssertExpectations(t)
}

func TestCreateEvent_Validation(t *testing.T) {
	svc := NewEventService(new(MockEventCatalog))
	when := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name string
		in   CreateEventInput
	}{
		{"no name", CreateEventInput{Description: "d", EventDate: when, TotalTickets: 1}},
		{"no description", CreateEventInput{Name: "n", EventDate: when, TotalTickets: 1}},
		{"no date", CreateEventInput{Name: "n", Description: "d", TotalTickets: 1}},
		{"no tickets", CreateEventInput{Name: "n", Description: "d", EventDate: when}},
		{"negative cap", CreateEventInput{Name: "n", Description: "d", EventDate: when, TotalTickets: 1, MaxTicketsPerUser: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestGetEvent(t *testing.T) {
	catalog := new(MockEventCatalog)
	svc := NewEventService(catalog)
	catalog.On("FindByID", mock.Anything, uint64(1)).Return(&model.Event{ID: 1, Version: 3}, nil)
	catalog.On("FindByID", mock.Anything, uint64(2)).Return(nil, repository.ErrNotFound)

	ev, err := svc.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, ev.Version)

	_, err = svc.GetEvent(context.Background(), 2)
	assertKind(t, err, KindNotFound, "Event not found")
}

func TestListEvents(t *testing.T) {
	catalog := new(MockEventCatalog)
	svc := NewEventService(catalog)
	catalog.On("Paginate", mock.Anything, 5, 5).Return([]model.Event{{ID: 6}, {ID: 7}}, 7, nil)

	page, err := svc.ListEvents(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Meta.CurrentPage)
	assert.Equal(t, 2, page.Meta.LastPage)
	require.NotNil(t, page.Links.Prev)
	assert.Equal(t, EventsPath+"?page=1&per_page=5", *page.Links.Prev)
	assert.Nil(t, page.Links.Next)
	catalog.AssertExpectations(t)
}
