package model

import "time"

// Reservation status values. A reservation starts ACTIVE and may move
// to CANCELLED exactly once.
const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
)

// Reservation records a user's claim on a number of tickets for one
// event. Only the quantity and status change after creation.
//
// Fields:
//
//	ID        – primary key identifier.
//	EventID   – event the tickets belong to.
//	UserID    – user who made the reservation.
//	Quantity  – number of tickets held (>= 1).
//	Status    – active or cancelled.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64    `json:"id"`         // reservations.id
	EventID   uint64    `json:"event_id"`   // reservations.event_id
	UserID    uint64    `json:"user_id"`    // reservations.user_id
	Quantity  int       `json:"quantity"`   // reservations.quantity
	Status    string    `json:"status"`     // reservations.status
	CreatedAt time.Time `json:"created_at"` // reservations.created_at
	UpdatedAt time.Time `json:"updated_at"` // reservations.updated_at
}

// IsActive reports whether the reservation still holds tickets.
func (r Reservation) IsActive() bool { return r.Status == ReservationActive }

// ReservationWithEvent is a reservation joined with the current state
// of its event. It is what reads and successful writes return.
type ReservationWithEvent struct {
	Reservation
	Event *Event `json:"event"`
}

// ReservationFields lists the mutable columns of a reservation. Nil
// fields are left untouched by an update.
type ReservationFields struct {
	Quantity *int
	Status   *string
}
