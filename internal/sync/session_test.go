package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
)

func newTestSession() (*Session, *remote.Memory, *realtime.Bus) {
	bus := realtime.NewBus(nil)
	client := remote.NewMemory(bus)
	sess := NewSession("user-b", entity.Profile{ID: "user-b", Username: "bee"}, client, bus)
	return sess, client, bus
}

func TestSubscribeReloadsAndReconciles(t *testing.T) {
	sess, client, bus := newTestSession()
	defer bus.Close()
	ctx := context.Background()

	// a row created before the subscription existed
	client.Seed(entity.Pins, entity.Row{"id": "pin-old", "layer": "public", "content": "before"})

	reload := func(ctx context.Context) error {
		rows, err := sess.Client.Query(ctx, entity.Pins, remote.Where(remote.Eq("layer", "public")), remote.Desc("created_at"))
		if err != nil {
			return err
		}
		for _, row := range rows {
			sess.Store.Apply(entity.Pins, row)
		}
		return nil
	}
	if err := sess.Subscribe(ctx, realtime.PinChannel("public"), reload); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, ok := sess.Store.Get(entity.Pins, "pin-old"); !ok {
		t.Fatalf("reload missed pre-existing row")
	}

	// a write published after subscribing reconciles automatically
	if _, err := client.Insert(ctx, entity.Pins, entity.Row{"id": "pin-new", "layer": "public", "content": "after"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := sess.Store.Get(entity.Pins, "pin-new"); !ok {
		t.Fatalf("live event not reconciled")
	}
}

func TestSubscribeReloadError(t *testing.T) {
	sess, _, bus := newTestSession()
	defer bus.Close()

	wantErr := errors.New("backend down")
	err := sess.Subscribe(context.Background(), realtime.PinChannel("public"), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected reload error, got %v", err)
	}
}

func TestResubscribeReplaysReloads(t *testing.T) {
	sess, _, bus := newTestSession()
	defer bus.Close()
	ctx := context.Background()

	reloads := 0
	if err := sess.Subscribe(ctx, realtime.MessageChannel("user-b"), func(context.Context) error {
		reloads++
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sess.Resubscribe(ctx); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if reloads != 2 {
		t.Fatalf("expected reload replay, got %d", reloads)
	}
}

func TestUnsubscribeKeepsEntities(t *testing.T) {
	sess, client, bus := newTestSession()
	defer bus.Close()
	ctx := context.Background()

	if err := sess.Subscribe(ctx, realtime.PinChannel("public"), nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := client.Insert(ctx, entity.Pins, entity.Row{"id": "pin-1", "layer": "public"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sess.Unsubscribe(realtime.PinChannel("public"))

	// entities survive the ended subscription
	if _, ok := sess.Store.Get(entity.Pins, "pin-1"); !ok {
		t.Fatalf("unsubscribe must not drop entities")
	}
	// but new events no longer arrive
	if _, err := client.Insert(ctx, entity.Pins, entity.Row{"id": "pin-2", "layer": "public"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := sess.Store.Get(entity.Pins, "pin-2"); ok {
		t.Fatalf("cancelled subscription still delivering")
	}
}

func TestDetachClearsStateAndSubscriptions(t *testing.T) {
	sess, client, bus := newTestSession()
	defer bus.Close()
	ctx := context.Background()

	sess.Attach()
	if err := sess.Subscribe(ctx, realtime.MessageChannel("user-b"), nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := client.Insert(ctx, entity.Messages, entity.Row{"from_user_id": "user-a", "to_user_id": "user-b", "content": "hi"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sess.Store.TotalUnread() != 1 {
		t.Fatalf("expected unread before detach")
	}

	sess.Detach()

	if sess.Attached() {
		t.Fatalf("expected detached")
	}
	if sess.Store.TotalUnread() != 0 {
		t.Fatalf("detach must clear unread state")
	}

	// deliveries after detach are dropped
	if _, err := client.Insert(ctx, entity.Messages, entity.Row{"from_user_id": "user-a", "to_user_id": "user-b", "content": "late"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sess.Store.TotalUnread() != 0 {
		t.Fatalf("post-detach event applied")
	}
}
