package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/TheVenters/VentApp/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBusLocalDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	got := make(chan Event, 1)
	sub := bus.Subscribe(PinChannel("public"), func(ev Event) {
		got <- ev
	})
	defer sub.Cancel()

	ev := Event{Op: OpInsert, Class: entity.Pins, Row: entity.Row{"id": "pin-1"}}
	if err := bus.Publish(context.Background(), PinChannel("public"), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case received := <-got:
		if received.Row.ID() != "pin-1" || received.Op != OpInsert {
			t.Fatalf("unexpected event: %+v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
}

func TestBusChannelIsolation(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	delivered := 0
	sub := bus.Subscribe(MessageChannel("user-a"), func(Event) { delivered++ })
	defer sub.Cancel()

	_ = bus.Publish(context.Background(), MessageChannel("user-b"), Event{Op: OpInsert, Class: entity.Messages})
	if delivered != 0 {
		t.Fatalf("event leaked across channels")
	}
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	delivered := 0
	sub := bus.Subscribe(PinChannel("public"), func(Event) { delivered++ })

	_ = bus.Publish(context.Background(), PinChannel("public"), Event{Op: OpInsert, Class: entity.Pins})
	sub.Cancel()
	_ = bus.Publish(context.Background(), PinChannel("public"), Event{Op: OpInsert, Class: entity.Pins})

	if delivered != 1 {
		t.Fatalf("expected exactly one delivery, got %d", delivered)
	}

	// cancelling twice is safe
	sub.Cancel()
}

func TestBusRedisMirror(t *testing.T) {
	s := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	busA := NewBus(clientA)
	busB := NewBus(clientB)
	defer busA.Close()
	defer busB.Close()

	got := make(chan Event, 1)
	sub := busB.Subscribe(MessageChannel("user-a"), func(ev Event) { got <- ev })
	defer sub.Cancel()

	// give the pattern subscription a moment to attach
	time.Sleep(20 * time.Millisecond)

	ev := Event{Op: OpUpdate, Class: entity.Messages, Row: entity.Row{"id": "msg-1", "content": "hi"}}
	if err := busA.Publish(context.Background(), MessageChannel("user-a"), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case received := <-got:
		if received.Row.ID() != "msg-1" || received.Op != OpUpdate {
			t.Fatalf("unexpected event: %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for mirrored event")
	}
}

func TestBusDoesNotEchoOwnPublishes(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	bus := NewBus(client)
	defer bus.Close()

	count := make(chan struct{}, 4)
	sub := bus.Subscribe(PinChannel("public"), func(Event) { count <- struct{}{} })
	defer sub.Cancel()

	time.Sleep(20 * time.Millisecond)
	_ = bus.Publish(context.Background(), PinChannel("public"), Event{Op: OpInsert, Class: entity.Pins})
	time.Sleep(100 * time.Millisecond)

	if len(count) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(count))
	}
}
