package pin

import (
	"context"
	"errors"
	"testing"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"
)

func newTestService(t *testing.T) (*Service, *remote.Memory, *sync.Session) {
	t.Helper()
	bus := realtime.NewBus(nil)
	t.Cleanup(bus.Close)
	client := remote.NewMemory(bus)
	sess := sync.NewSession("user-u", entity.Profile{ID: "user-u", Name: "Uma", Username: "uma"}, client, bus)
	return NewService(sess, "public"), client, sess
}

func TestCreateTextPin(t *testing.T) {
	svc, _, sess := newTestService(t)

	pin, err := svc.Create(context.Background(), CreateInput{
		Type: "text", Caption: "Hello", Lat: 39.7, Lng: -104.9,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pin.UserID != "user-u" || pin.Content != "Hello" {
		t.Fatalf("unexpected pin: %+v", pin)
	}
	if pin.Lat != 39.7 || pin.Lng != -104.9 {
		t.Fatalf("unexpected coordinate: %+v", pin)
	}
	if pin.AuthorUsername != "uma" {
		t.Fatalf("expected author from session profile")
	}
	if pin.MediaURL != "" || pin.MediaType != "" {
		t.Fatalf("text pin must not carry media fields")
	}

	if _, ok := sess.Store.Get(entity.Pins, pin.ID); !ok {
		t.Fatalf("confirmed pin missing from store")
	}
}

func TestCreateMediaPin(t *testing.T) {
	svc, _, _ := newTestService(t)

	pin, err := svc.Create(context.Background(), CreateInput{
		Type: "media", Caption: "sunset", MediaURL: "https://example.com/p.jpg", Lat: 1, Lng: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pin.MediaURL == "" || pin.MediaType != "photo" {
		t.Fatalf("media fields required for media pin: %+v", pin)
	}
	if pin.Content != pin.MediaURL {
		t.Fatalf("media pin content should mirror media_url")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, client, _ := newTestService(t)
	// validation short-circuits before any network call
	client.FailWith = errors.New("must not be called")

	cases := []CreateInput{
		{Type: "text", Caption: "", Lat: 0, Lng: 0},
		{Type: "media", MediaURL: "", Lat: 0, Lng: 0},
		{Type: "media", MediaURL: "https://x", MediaType: "gif", Lat: 0, Lng: 0},
		{Type: "sticker", Caption: "x", Lat: 0, Lng: 0},
		{Type: "text", Caption: "x", Lat: 91, Lng: 0},
	}
	for i, input := range cases {
		if _, err := svc.Create(context.Background(), input); !errors.Is(err, sync.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateFailureLeavesStoreUnchanged(t *testing.T) {
	svc, client, sess := newTestService(t)
	client.FailWith = remote.ErrTransport

	if _, err := svc.Create(context.Background(), CreateInput{Type: "text", Caption: "x", Lat: 1, Lng: 2}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(sess.Store.List(entity.Pins, nil)) != 0 {
		t.Fatalf("confirm-then-apply must not touch the store on failure")
	}
}

func TestUpdateOwnershipCheckedLocally(t *testing.T) {
	svc, client, sess := newTestService(t)
	sess.Store.Apply(entity.Pins, entity.Row{"id": "pin-1", "user_id": "someone-else", "type": "text", "content": "hi"})
	client.FailWith = errors.New("must not be called")

	if _, err := svc.Update(context.Background(), "pin-1", "edit", "", ""); !errors.Is(err, sync.ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestUpdateMergesConfirmedRow(t *testing.T) {
	svc, _, sess := newTestService(t)

	created, err := svc.Create(context.Background(), CreateInput{Type: "text", Caption: "Hello", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(context.Background(), created.ID, "edited", "", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "edited" || updated.Caption != "edited" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Fatalf("expected updated_at set")
	}

	row, _ := sess.Store.Get(entity.Pins, created.ID)
	if entity.Str(row, "user_id") != "user-u" {
		t.Fatalf("merge lost owner field")
	}
}

func TestUpdateAbsentPin(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Update(context.Background(), "nope", "x", "", ""); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	svc, _, sess := newTestService(t)

	created, err := svc.Create(context.Background(), CreateInput{Type: "text", Caption: "bye", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := sess.Store.Get(entity.Pins, created.ID); ok {
		t.Fatalf("pin still in store")
	}
	// deleting an id the backend no longer has is a silent success
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("repeat delete must succeed: %v", err)
	}
}

func TestDeleteNotOwner(t *testing.T) {
	svc, client, sess := newTestService(t)
	sess.Store.Apply(entity.Pins, entity.Row{"id": "pin-1", "user_id": "someone-else"})
	client.FailWith = errors.New("must not be called")

	if err := svc.Delete(context.Background(), "pin-1"); !errors.Is(err, sync.ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestDeleteForeignPinNotLoadedLocally(t *testing.T) {
	svc, client, sess := newTestService(t)
	// backend knows the pin, this session's store does not
	client.Seed(entity.Pins, entity.Row{"id": "p1", "user_id": "owner-a", "layer": "friends", "type": "text"})

	if err := svc.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := client.Query(context.Background(), entity.Pins, remote.Where(remote.Eq("id", "p1")), remote.Order{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("another user's pin was deleted at the backend")
	}
	if len(sess.Store.List(entity.Pins, nil)) != 0 {
		t.Fatalf("store must stay empty")
	}
}

func TestSubscribeDeduplicatesOwnCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// the insert event fires during Create and the confirmed row is
	// applied right after; both paths land on the same id
	if _, err := svc.Create(ctx, CreateInput{Type: "text", Caption: "once", Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := len(svc.List()); got != 1 {
		t.Fatalf("expected exactly one pin, got %d", got)
	}
}

func TestNearby(t *testing.T) {
	svc, _, sess := newTestService(t)
	// Denver and roughly 1km east of it, plus one far away
	sess.Store.Apply(entity.Pins, entity.Row{"id": "close", "layer": "public", "lat": 39.7392, "lng": -104.9903})
	sess.Store.Apply(entity.Pins, entity.Row{"id": "near", "layer": "public", "lat": 39.7392, "lng": -104.9786})
	sess.Store.Apply(entity.Pins, entity.Row{"id": "far", "layer": "public", "lat": 40.7128, "lng": -74.0060})

	got := svc.Nearby(39.7392, -104.9903, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 nearby pins, got %d", len(got))
	}
	for _, p := range got {
		if p.ID == "far" {
			t.Fatalf("far pin leaked into nearby")
		}
	}
}

func TestListFiltersLayer(t *testing.T) {
	svc, _, sess := newTestService(t)
	sess.Store.Apply(entity.Pins, entity.Row{"id": "p1", "layer": "public"})
	sess.Store.Apply(entity.Pins, entity.Row{"id": "p2", "layer": "friends"})

	pins := svc.List()
	if len(pins) != 1 || pins[0].ID != "p1" {
		t.Fatalf("layer filter broken: %v", pins)
	}
}
