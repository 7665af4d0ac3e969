package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// ReservationRepo provides persistence for reservations. It has no
// concurrency rules of its own: capacity is guarded by the event's
// versioned update, and callers group writes in a transaction through
// TxManager.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `r.id, r.event_id, r.user_id, r.quantity, r.status, r.created_at, r.updated_at`

// joinedColumns selects a reservation followed by its event.
const joinedColumns = reservationColumns + `,
	e.id, e.name, e.description, e.event_date, e.total_tickets, e.available_tickets,
	e.max_tickets_per_user, e.version, e.created_at, e.updated_at`

func scanJoined(row interface{ Scan(...any) error }) (*model.ReservationWithEvent, error) {
	out := &model.ReservationWithEvent{Event: &model.Event{}}
	r, e := &out.Reservation, out.Event
	err := row.Scan(
		&r.ID, &r.EventID, &r.UserID, &r.Quantity, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		&e.ID, &e.Name, &e.Description, &e.EventDate, &e.TotalTickets, &e.AvailableTickets,
		&e.MaxTicketsPerUser, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID returns the reservation joined with its event. It returns
// ErrNotFound when the reservation does not exist.
func (r *ReservationRepo) FindByID(ctx context.Context, id uint64) (*model.ReservationWithEvent, error) {
	q := `SELECT ` + joinedColumns + `
	      FROM reservations r
	      JOIN events e ON e.id = r.event_id
	      WHERE r.id = ?`
	out, err := scanJoined(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// Create inserts a reservation and populates the generated ID and
// timestamps on res.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (event_id, user_id, quantity, status) VALUES (?, ?, ?, ?)`
	db := conn(ctx, r.db)
	result, err := db.ExecContext(ctx, q, res.EventID, res.UserID, res.Quantity, res.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return db.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// Update writes the non-nil fields to the reservation row and mirrors
// them onto res. Passing no fields is a no-op.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation, fields model.ReservationFields) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if fields.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *fields.Quantity)
	}
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *fields.Status)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, res.ID)
	q := `UPDATE reservations SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows when values are unchanged, so
	// only a driver error is treated as failure here.
	if _, err := result.RowsAffected(); err != nil {
		return err
	}
	if fields.Quantity != nil {
		res.Quantity = *fields.Quantity
	}
	if fields.Status != nil {
		res.Status = *fields.Status
	}
	return nil
}

// FindByUserAndEvent returns the user's active reservations for one
// event. Cancelled reservations are excluded so callers can sum the
// quantities against the per-user cap.
func (r *ReservationRepo) FindByUserAndEvent(ctx context.Context, userID, eventID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
	      FROM reservations r
	      WHERE r.user_id = ? AND r.event_id = ? AND r.status = ?
	      ORDER BY r.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, userID, eventID, model.ReservationActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.EventID, &res.UserID, &res.Quantity, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByUserPaginated returns one page of the user's reservations,
// newest first, each joined with its event, plus the total count.
func (r *ReservationRepo) FindByUserPaginated(ctx context.Context, userID uint64, limit, offset int) ([]model.ReservationWithEvent, int, error) {
	db := conn(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items := make([]model.ReservationWithEvent, 0, limit)
	if total == 0 || offset >= total {
		return items, total, nil
	}
	q := `SELECT ` + joinedColumns + `
	      FROM reservations r
	      JOIN events e ON e.id = r.event_id
	      WHERE r.user_id = ?
	      ORDER BY r.created_at DESC, r.id DESC
	      LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanJoined(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
