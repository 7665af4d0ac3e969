// Package queue defines the messages exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// ReservationQueue is the durable queue carrying reservation lifecycle
// events.
const ReservationQueue = "reservation.events"

// Lifecycle event types.
const (
	ReservationCreated   = "reservation.created"
	ReservationUpdated   = "reservation.updated"
	ReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation change commits. It
// carries the event counters as of that commit so consumers do not have
// to query the database.
type ReservationEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	ReservationID    uint64 `json:"reservation_id"`
	EventID          uint64 `json:"event_id"`
	EventName        string `json:"event_name"`
	UserID           uint64 `json:"user_id"`
	Quantity         int    `json:"quantity"`
	Status           string `json:"status"`
	AvailableTickets int    `json:"available_tickets"`
	EventVersion     int    `json:"event_version"`
	OccurredAt       string `json:"occurred_at"`
}

// NewReservationEvent builds the message for a committed change.
func NewReservationEvent(typ string, res *model.ReservationWithEvent) ReservationEvent {
	ev := ReservationEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		ReservationID: res.ID,
		EventID:       res.EventID,
		UserID:        res.UserID,
		Quantity:      res.Quantity,
		Status:        res.Status,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if res.Event != nil {
		ev.EventName = res.Event.Name
		ev.AvailableTickets = res.Event.AvailableTickets
		ev.EventVersion = res.Event.Version
	}
	return ev
}
