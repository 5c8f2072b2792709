package sync

import (
	"context"
	"log"
	gosync "sync"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/store"
)

// Session is one user's synchronized view of the backend: their entity
// store, their change-stream subscriptions, and the reconciler feeding
// one from the other. It replaces the ambient globals of a browser
// client with an explicit attach/detach lifecycle.
type Session struct {
	UserID  string
	Profile entity.Profile
	Store   *store.Store
	Client  remote.Client

	bus *realtime.Bus
	rec *Reconciler

	mu       gosync.Mutex
	attached bool
	subs     map[string]*realtime.Subscription
	reloads  map[string]func(context.Context) error
}

func NewSession(userID string, profile entity.Profile, client remote.Client, bus *realtime.Bus) *Session {
	st := store.New(userID)
	return &Session{
		UserID:  userID,
		Profile: profile,
		Store:   st,
		Client:  client,
		bus:     bus,
		rec:     NewReconciler(st),
		subs:    map[string]*realtime.Subscription{},
		reloads: map[string]func(context.Context) error{},
	}
}

// Reconcile applies one change event to the store. Services wrap this
// with their own context guards before handing it to a subscription.
func (s *Session) Reconcile(ev realtime.Event) {
	s.rec.Handle(ev)
}

// Attach marks the session live. Subscriptions made before Attach are
// permitted; the flag exists so Detach can be observed by completion
// handlers racing teardown.
func (s *Session) Attach() {
	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()
}

func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Subscribe attaches a reconciling subscription on channel and then
// runs reload to pull rows the stream may already have missed. The
// stream is attached before the reload so nothing falls between them;
// events applied during the reload merge idempotently by id.
// Re-subscribing an already-subscribed channel cancels the old handle
// first and reloads again. reload may be nil.
func (s *Session) Subscribe(ctx context.Context, channel string, reload func(context.Context) error) error {
	s.mu.Lock()
	if old, ok := s.subs[channel]; ok {
		old.Cancel()
	}
	sub := s.bus.Subscribe(channel, s.rec.Handle)
	s.subs[channel] = sub
	if reload != nil {
		s.reloads[channel] = reload
	} else {
		delete(s.reloads, channel)
	}
	s.mu.Unlock()

	if reload != nil {
		if err := reload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Resubscribe re-attaches every channel subscription and replays each
// channel's reload, recovering from missed events after a transport
// disconnection.
func (s *Session) Resubscribe(ctx context.Context) error {
	s.mu.Lock()
	channels := make([]string, 0, len(s.subs))
	for channel := range s.subs {
		channels = append(channels, channel)
	}
	reloads := make(map[string]func(context.Context) error, len(s.reloads))
	for channel, fn := range s.reloads {
		reloads[channel] = fn
	}
	s.mu.Unlock()

	var firstErr error
	for _, channel := range channels {
		if err := s.Subscribe(ctx, channel, reloads[channel]); err != nil {
			log.Printf("resubscribe %s: %v", channel, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Unsubscribe cancels one channel's subscription, keeping its entities.
func (s *Session) Unsubscribe(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[channel]; ok {
		sub.Cancel()
		delete(s.subs, channel)
		delete(s.reloads, channel)
	}
}

// Detach tears the session down: every subscription is cancelled and
// all local state, including the unread index, is cleared. In-flight
// remote calls are not cancelled; their completions find the session
// detached and drop their results.
func (s *Session) Detach() {
	s.mu.Lock()
	for channel, sub := range s.subs {
		sub.Cancel()
		delete(s.subs, channel)
	}
	s.reloads = map[string]func(context.Context) error{}
	s.attached = false
	s.mu.Unlock()

	s.Store.Clear()
}
