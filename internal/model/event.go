package model

import "time"

// Event represents a ticketed event as stored in the `events` table.
// AvailableTickets is the contended counter shared by every
// reservation for the event; it is only ever changed through a
// version-checked conditional update, and Version grows by exactly
// one on each such change.
//
// Fields:
//
//	ID                – primary key identifier.
//	Name              – display name.
//	Description       – free-form description.
//	EventDate         – when the event starts.
//	TotalTickets      – capacity of the event (>= 1).
//	AvailableTickets  – tickets not yet reserved (0..TotalTickets).
//	MaxTicketsPerUser – cap on a single user's active tickets.
//	Version           – optimistic lock counter, starts at 1.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Event struct {
	ID                uint64    `json:"id"`                   // events.id
	Name              string    `json:"name"`                 // events.name
	Description       string    `json:"description"`          // events.description
	EventDate         time.Time `json:"event_date"`           // events.event_date
	TotalTickets      int       `json:"total_tickets"`        // events.total_tickets
	AvailableTickets  int       `json:"available_tickets"`    // events.available_tickets
	MaxTicketsPerUser int       `json:"max_tickets_per_user"` // events.max_tickets_per_user
	Version           int       `json:"version"`              // events.version
	CreatedAt         time.Time `json:"created_at"`           // events.created_at
	UpdatedAt         time.Time `json:"updated_at"`           // events.updated_at
}

// DefaultMaxTicketsPerUser applies when an event is created without an
// explicit per-user cap.
const DefaultMaxTicketsPerUser = 5
