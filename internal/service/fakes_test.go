package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// memStore is an in-memory EventStore, ReservationStore and TxManager.
// Transactions are serialized and snapshot the whole state so a
// failed unit of work leaves nothing behind. With interleaved set,
// transactions run concurrently without snapshots, leaving
// UpdateWithVersion as the only guard; use it only where failures
// happen before the first write.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	interleaved bool
	// afterEventRead runs after every event read, outside mu.
	afterEventRead func()

	events       map[uint64]model.Event
	reservations map[uint64]model.Reservation
	nextID       uint64

	// onVersionedUpdate runs with mu held before the version compare.
	onVersionedUpdate func(s *memStore, call int)
	versionedCalls    int

	failReservationCreate error
	failReservationUpdate error
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		events:       map[uint64]model.Event{},
		reservations: map[uint64]model.Reservation{},
	}
}

func (s *memStore) addEvent(ev model.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	if ev.MaxTicketsPerUser == 0 {
		ev.MaxTicketsPerUser = model.DefaultMaxTicketsPerUser
	}
	if ev.Version == 0 {
		ev.Version = 1
	}
	s.events[ev.ID] = ev
	return ev.ID
}

func (s *memStore) addReservation(r model.Reservation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	if r.Status == "" {
		r.Status = model.ReservationActive
	}
	r.CreatedAt = time.Now()
	s.reservations[r.ID] = r
	return r.ID
}

func (s *memStore) event(id uint64) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memStore) reservation(id uint64) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id]
}

func (s *memStore) reservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	if s.interleaved {
		return fn(context.WithValue(ctx, memTxKey{}, true))
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	events := make(map[uint64]model.Event, len(s.events))
	for k, v := range s.events {
		events[k] = v
	}
	reservations := make(map[uint64]model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		reservations[k] = v
	}
	nextID := s.nextID
	s.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.events, s.reservations, s.nextID = events, reservations, nextID
			s.mu.Unlock()
		}
	}()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

// EventStore

func (s *memStore) FindByID(_ context.Context, id uint64) (*model.Event, error) {
	s.mu.Lock()
	ev, ok := s.events[id]
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.afterEventRead != nil {
		s.afterEventRead()
	}
	return &ev, nil
}

func (s *memStore) UpdateWithVersion(_ context.Context, id uint64, expectedVersion, newAvailable int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versionedCalls++
	if s.onVersionedUpdate != nil {
		s.onVersionedUpdate(s, s.versionedCalls)
	}
	ev, ok := s.events[id]
	if !ok || ev.Version != expectedVersion {
		return false, nil
	}
	ev.AvailableTickets = newAvailable
	ev.Version++
	s.events[id] = ev
	return true, nil
}

// reservationStore adapts memStore to ReservationStore; the method
// names clash with EventStore.
type reservationStore struct{ s *memStore }

func (r reservationStore) FindByID(_ context.Context, id uint64) (*model.ReservationWithEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ev := r.s.events[res.EventID]
	return &model.ReservationWithEvent{Reservation: res, Event: &ev}, nil
}

func (r reservationStore) Create(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failReservationCreate != nil {
		return r.s.failReservationCreate
	}
	r.s.nextID++
	res.ID = r.s.nextID
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	r.s.reservations[res.ID] = *res
	return nil
}

func (r reservationStore) Update(_ context.Context, res *model.Reservation, f model.ReservationFields) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failReservationUpdate != nil {
		return r.s.failReservationUpdate
	}
	stored, ok := r.s.reservations[res.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if f.Quantity != nil {
		stored.Quantity = *f.Quantity
	}
	if f.Status != nil {
		stored.Status = *f.Status
	}
	stored.UpdatedAt = time.Now()
	r.s.reservations[res.ID] = stored
	*res = stored
	return nil
}

func (r reservationStore) FindByUserAndEvent(_ context.Context, userID, eventID uint64) ([]model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.s.reservations {
		if res.UserID == userID && res.EventID == eventID && res.IsActive() {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r reservationStore) FindByUserPaginated(_ context.Context, userID uint64, limit, offset int) ([]model.ReservationWithEvent, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.ReservationWithEvent
	for _, res := range r.s.reservations {
		if res.UserID != userID {
			continue
		}
		ev := r.s.events[res.EventID]
		all = append(all, model.ReservationWithEvent{Reservation: res, Event: &ev})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return []model.ReservationWithEvent{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) PublishReservation(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var errBoom = errors.New("boom")
