package queue

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
)

func sampleReservation() *model.ReservationWithEvent {
	return &model.ReservationWithEvent{
		Reservation: model.Reservation{ID: 7, EventID: 3, UserID: 11, Quantity: 2, Status: model.ReservationActive},
		Event:       &model.Event{ID: 3, Name: "Jazz Night", AvailableTickets: 98, Version: 4},
	}
}

func TestNewReservationEvent(t *testing.T) {
	ev := NewReservationEvent(ReservationCreated, sampleReservation())

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ReservationCreated, ev.Type)
	assert.Equal(t, uint64(7), ev.ReservationID)
	assert.Equal(t, "Jazz Night", ev.EventName)
	assert.Equal(t, 98, ev.AvailableTickets)
	assert.Equal(t, 4, ev.EventVersion)

	other := NewReservationEvent(ReservationCreated, sampleReservation())
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestNewReservationEventWithoutEvent(t *testing.T) {
	res := sampleReservation()
	res.Event = nil
	ev := NewReservationEvent(ReservationCancelled, res)
	assert.Empty(t, ev.EventName)
	assert.Zero(t, ev.EventVersion)
}

func TestConsumerHandleAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reservations.log")
	c := NewConsumer("", path, nil)

	first := NewReservationEvent(ReservationCreated, sampleReservation())
	second := NewReservationEvent(ReservationCancelled, sampleReservation())
	for _, ev := range []ReservationEvent{first, second} {
		body, err := jsonBody(ev)
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reservation.created")
	assert.Contains(t, lines[0], "reservation_id=7")
	assert.Contains(t, lines[1], "reservation.cancelled")
}

func TestConsumerHandleRejectsGarbage(t *testing.T) {
	c := NewConsumer("", filepath.Join(t.TempDir(), "r.log"), nil)
	assert.Error(t, c.Handle([]byte("{not json")))
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(ReservationEvent{
		Type: ReservationUpdated, ReservationID: 1, UserID: 2, EventID: 3,
		EventName: "Expo", Quantity: 4, Status: "active", AvailableTickets: 5, EventVersion: 6,
		OccurredAt: "2026-01-02T03:04:05Z",
	})
	assert.Equal(t,
		"[2026-01-02T03:04:05Z] reservation.updated | reservation_id=1 | user_id=2 | event_id=3 | event=\"Expo\" | quantity=4 | status=active | available=5 | version=6\n",
		line)
}

func jsonBody(ev ReservationEvent) ([]byte, error) { return json.Marshal(ev) }

// silentBroker accepts TCP connections and never answers the AMQP
// handshake. accepted fires once per connection.
func silentBroker(t *testing.T) (string, <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan struct{}, 8)
	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			accepted <- struct{}{}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/", accepted
}

func TestPublisherDialDoesNotHoldLock(t *testing.T) {
	url, accepted := silentBroker(t)
	p := NewPublisher(url, nil)
	p.dialTimeout = 500 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- p.PublishReservation(context.Background(), NewReservationEvent(ReservationCreated, sampleReservation()))
	}()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher never dialed")
	}

	// the handshake is stalled; Close must not wait for it
	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("Close blocked behind the dial")
	}

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "rabbitmq dial")
	case <-time.After(3 * time.Second):
		t.Fatal("dial timeout not applied")
	}
}
