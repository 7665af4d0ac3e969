// Package service holds the business logic of the booking API. The
// reservation engine here coordinates the event capacity counter and
// the reservation rows inside one unit of work, using the event's
// version column for optimistic concurrency instead of row locks.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/pagination"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// EventStore is the capacity store consumed by the engine.
type EventStore interface {
	FindByID(ctx context.Context, id uint64) (*model.Event, error)
	// UpdateWithVersion must be a single atomic conditional write that
	// reports true only if the stored version still equals
	// expectedVersion.
	UpdateWithVersion(ctx context.Context, id uint64, expectedVersion, newAvailable int) (bool, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	FindByID(ctx context.Context, id uint64) (*model.ReservationWithEvent, error)
	Create(ctx context.Context, res *model.Reservation) error
	Update(ctx context.Context, res *model.Reservation, fields model.ReservationFields) error
	FindByUserAndEvent(ctx context.Context, userID, eventID uint64) ([]model.Reservation, error)
	FindByUserPaginated(ctx context.Context, userID uint64, limit, offset int) ([]model.ReservationWithEvent, int, error)
}

// TxManager runs fn as one all-or-nothing unit of work.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher announces committed reservation changes.
type Publisher interface {
	PublishReservation(ctx context.Context, ev queue.ReservationEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishReservation(context.Context, queue.ReservationEvent) error { return nil }

// ReservationsPath is the default base for pagination links.
const ReservationsPath = "/v1/reservations/my-reservations"

// ReservationService is the reservation engine.
type ReservationService struct {
	tx           TxManager
	events       EventStore
	reservations ReservationStore
	publisher    Publisher
	log          *zap.Logger
	listPath     string
}

// ReservationOption configures a ReservationService.
type ReservationOption func(*ReservationService)

// WithPublisher sets the publisher notified after each committed change.
func WithPublisher(p Publisher) ReservationOption {
	return func(s *ReservationService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ReservationOption {
	return func(s *ReservationService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewReservationService wires the engine to its stores.
func NewReservationService(tx TxManager, events EventStore, reservations ReservationStore, opts ...ReservationOption) *ReservationService {
	s := &ReservationService{
		tx:           tx,
		events:       events,
		reservations: reservations,
		publisher:    noopPublisher{},
		log:          zap.NewNop(),
		listPath:     ReservationsPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservation reserves quantity tickets of an event for a user.
// version is the event version the caller last saw; if the event has
// changed since, the call fails with a version conflict and nothing is
// written.
func (s *ReservationService) CreateReservation(ctx context.Context, eventID, userID uint64, quantity, version int) (*model.ReservationWithEvent, error) {
	if quantity < 1 {
		return nil, newError(KindInvalidArgument, msgQuantityTooSmall)
	}

	var out *model.ReservationWithEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ev, err := s.loadEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if quantity > ev.MaxTicketsPerUser {
			return perEventLimit(ev.MaxTicketsPerUser)
		}
		held, err := s.activeQuantity(ctx, userID, ev.ID, 0)
		if err != nil {
			return err
		}
		if held+quantity > ev.MaxTicketsPerUser {
			return aggregateLimit(held, ev.MaxTicketsPerUser)
		}
		if quantity > ev.AvailableTickets {
			return newError(KindCapacityExceeded, msgNotEnoughTickets)
		}
		if err := s.moveCapacity(ctx, ev.ID, version, ev.AvailableTickets-quantity); err != nil {
			return err
		}

		res := &model.Reservation{
			EventID:  ev.ID,
			UserID:   userID,
			Quantity: quantity,
			Status:   model.ReservationActive,
		}
		if err := s.reservations.Create(ctx, res); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		out, err = s.reload(ctx, res.ID)
		return err
	})
	if err != nil {
		s.logFailure("create reservation", err, zap.Uint64("event_id", eventID), zap.Uint64("user_id", userID))
		return nil, err
	}
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", out.ID),
		zap.Uint64("event_id", out.EventID),
		zap.Uint64("user_id", userID),
		zap.Int("quantity", quantity),
		zap.Int("event_version", out.Event.Version))
	s.publish(ctx, queue.ReservationCreated, out)
	return out, nil
}

// UpdateReservation changes the quantity of an active reservation
// owned by requestingUserID. Increases are checked against the
// remaining capacity; decreases release tickets. Either way the event
// is written with the caller's version so the counter and version stay
// in step.
func (s *ReservationService) UpdateReservation(ctx context.Context, reservationID uint64, quantity, version int, requestingUserID uint64) (*model.ReservationWithEvent, error) {
	if quantity < 1 {
		return nil, newError(KindInvalidArgument, msgQuantityTooSmall)
	}

	var out *model.ReservationWithEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.loadReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != requestingUserID {
			return newError(KindForbidden, "You are not authorized to update this reservation")
		}
		if !res.IsActive() {
			return newError(KindAlreadyCancelled, msgAlreadyCancelled)
		}
		ev, err := s.loadEvent(ctx, res.EventID)
		if err != nil {
			return err
		}
		others, err := s.activeQuantity(ctx, requestingUserID, ev.ID, res.ID)
		if err != nil {
			return err
		}
		if quantity > ev.MaxTicketsPerUser {
			return perEventLimit(ev.MaxTicketsPerUser)
		}
		if others+quantity > ev.MaxTicketsPerUser {
			return aggregateLimit(others, ev.MaxTicketsPerUser)
		}
		delta := quantity - res.Quantity
		if delta > 0 && delta > ev.AvailableTickets {
			return newError(KindCapacityExceeded, msgNotEnoughTickets)
		}
		if err := s.moveCapacity(ctx, ev.ID, version, ev.AvailableTickets-delta); err != nil {
			return err
		}
		if err := s.reservations.Update(ctx, &res.Reservation, model.ReservationFields{Quantity: &quantity}); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		out, err = s.reload(ctx, res.ID)
		return err
	})
	if err != nil {
		s.logFailure("update reservation", err, zap.Uint64("reservation_id", reservationID), zap.Uint64("user_id", requestingUserID))
		return nil, err
	}
	s.log.Info("reservation updated",
		zap.Uint64("reservation_id", out.ID),
		zap.Int("quantity", out.Quantity),
		zap.Int("event_version", out.Event.Version))
	s.publish(ctx, queue.ReservationUpdated, out)
	return out, nil
}

// CancelReservation cancels an active reservation and returns its
// tickets to the event. The event version is read inside the same unit
// of work; if another writer bumps it in between, the event is reloaded
// and the write retried once before a version conflict is reported.
// Cancelling an already cancelled reservation is rejected.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID uint64) error {
	return s.cancel(ctx, reservationID, nil)
}

// CancelReservationForUser is CancelReservation with an ownership
// check performed in the same unit of work.
func (s *ReservationService) CancelReservationForUser(ctx context.Context, reservationID, userID uint64) error {
	return s.cancel(ctx, reservationID, &userID)
}

func (s *ReservationService) cancel(ctx context.Context, reservationID uint64, owner *uint64) error {
	var out *model.ReservationWithEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.loadReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if owner != nil && res.UserID != *owner {
			return newError(KindForbidden, "You are not authorized to cancel this reservation")
		}
		if !res.IsActive() {
			return newError(KindAlreadyCancelled, msgAlreadyCancelled)
		}
		ev, err := s.loadEvent(ctx, res.EventID)
		if err != nil {
			return err
		}
		ok, err := s.events.UpdateWithVersion(ctx, ev.ID, ev.Version, ev.AvailableTickets+res.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("cancel lost version race, reloading event",
				zap.Uint64("event_id", ev.ID), zap.Int("version", ev.Version))
			if ev, err = s.loadEvent(ctx, res.EventID); err != nil {
				return err
			}
			if err := s.moveCapacity(ctx, ev.ID, ev.Version, ev.AvailableTickets+res.Quantity); err != nil {
				return err
			}
		}
		status := model.ReservationCancelled
		if err := s.reservations.Update(ctx, &res.Reservation, model.ReservationFields{Status: &status}); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		out, err = s.reload(ctx, res.ID)
		return err
	})
	if err != nil {
		s.logFailure("cancel reservation", err, zap.Uint64("reservation_id", reservationID))
		return err
	}
	s.log.Info("reservation cancelled",
		zap.Uint64("reservation_id", out.ID),
		zap.Int("released", out.Quantity),
		zap.Int("event_version", out.Event.Version))
	s.publish(ctx, queue.ReservationCancelled, out)
	return nil
}

// GetReservation returns a reservation owned by userID.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, userID uint64) (*model.ReservationWithEvent, error) {
	res, err := s.loadReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, newError(KindForbidden, "You are not authorized to view this reservation")
	}
	return res, nil
}

// ListUserReservations returns one page of the user's reservations,
// newest first, each with its event.
func (s *ReservationService) ListUserReservations(ctx context.Context, userID uint64, perPage, page int) (*pagination.Page[model.ReservationWithEvent], error) {
	req := pagination.NewRequest(perPage, page)
	items, total, err := s.reservations.FindByUserPaginated(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return pagination.New(items, total, req, s.listPath), nil
}

// moveCapacity performs the versioned write and turns a lost race into
// a VersionConflict.
func (s *ReservationService) moveCapacity(ctx context.Context, eventID uint64, version, newAvailable int) error {
	ok, err := s.events.UpdateWithVersion(ctx, eventID, version, newAvailable)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindVersionConflict, msgVersionConflict)
	}
	return nil
}

// activeQuantity sums the user's active tickets for the event,
// skipping the reservation with id exclude.
func (s *ReservationService) activeQuantity(ctx context.Context, userID, eventID, exclude uint64) (int, error) {
	list, err := s.reservations.FindByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		return 0, fmt.Errorf("load user reservations: %w", err)
	}
	sum := 0
	for _, r := range list {
		if r.ID == exclude || !r.IsActive() {
			continue
		}
		sum += r.Quantity
	}
	return sum, nil
}

func (s *ReservationService) loadEvent(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgEventNotFound)
		}
		return nil, fmt.Errorf("load event %d: %w", id, err)
	}
	return ev, nil
}

func (s *ReservationService) loadReservation(ctx context.Context, id uint64) (*model.ReservationWithEvent, error) {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgReservationMissing)
		}
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return res, nil
}

func (s *ReservationService) reload(ctx context.Context, id uint64) (*model.ReservationWithEvent, error) {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload reservation %d: %w", id, err)
	}
	return res, nil
}

func (s *ReservationService) publish(ctx context.Context, typ string, res *model.ReservationWithEvent) {
	ev := queue.NewReservationEvent(typ, res)
	if err := s.publisher.PublishReservation(ctx, ev); err != nil {
		s.log.Warn("publish reservation event failed",
			zap.String("type", typ), zap.Uint64("reservation_id", res.ID), zap.Error(err))
	}
}

func (s *ReservationService) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if kind, ok := KindOf(err); ok {
		fields = append(fields, zap.Stringer("kind", kind))
		s.log.Info(op+" rejected", fields...)
		return
	}
	s.log.Error(op+" failed", fields...)
}
