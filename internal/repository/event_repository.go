package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// EventRepo persists events and owns the optimistic capacity update.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, description, event_date, total_tickets, available_tickets,
	max_tickets_per_user, version, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }, ev *model.Event) error {
	return row.Scan(
		&ev.ID, &ev.Name, &ev.Description, &ev.EventDate,
		&ev.TotalTickets, &ev.AvailableTickets, &ev.MaxTicketsPerUser, &ev.Version,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
}

// FindByID loads an event. It returns ErrNotFound when no row matches.
func (r *EventRepo) FindByID(ctx context.Context, id uint64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	var ev model.Event
	if err := scanEvent(conn(ctx, r.db).QueryRowContext(ctx, q, id), &ev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// UpdateWithVersion sets available_tickets and bumps version in a
// single conditional statement. It reports true only when the row
// still carried expectedVersion; a false result means another writer
// got there first. The method never retries.
func (r *EventRepo) UpdateWithVersion(ctx context.Context, id uint64, expectedVersion, newAvailable int) (bool, error) {
	const q = `UPDATE events
	           SET available_tickets = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND version = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, newAvailable, id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Create inserts a new event and reloads it so defaults and
// timestamps are populated on ev.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
	           (name, description, event_date, total_tickets, available_tickets, max_tickets_per_user, version)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	db := conn(ctx, r.db)
	res, err := db.ExecContext(ctx, q, ev.Name, ev.Description, ev.EventDate.UTC(),
		ev.TotalTickets, ev.AvailableTickets, ev.MaxTicketsPerUser, ev.Version)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sel := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(db.QueryRowContext(ctx, sel, id), ev)
}

// Paginate returns one page of events ordered by event date, earliest
// first, together with the total number of events.
func (r *EventRepo) Paginate(ctx context.Context, limit, offset int) ([]model.Event, int, error) {
	db := conn(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, err
	}
	events := make([]model.Event, 0, limit)
	if total == 0 || offset >= total {
		return events, total, nil
	}
	q := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var ev model.Event
		if err := scanEvent(rows, &ev); err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
