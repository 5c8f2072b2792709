package server

import (
	"context"
	gosync "sync"

	"github.com/TheVenters/VentApp/internal/chat"
	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/friend"
	"github.com/TheVenters/VentApp/internal/pin"
	"github.com/TheVenters/VentApp/internal/profile"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/store"
	"github.com/TheVenters/VentApp/internal/stream"
	"github.com/TheVenters/VentApp/internal/sync"
)

// UserState is one authenticated user's live session and the services
// working over it.
type UserState struct {
	Session  *sync.Session
	Pins     *pin.Service
	Friends  *friend.Service
	Chat     *chat.Service
	Profiles *profile.Service

	unhook func()
}

// SessionManager builds user state lazily on first authenticated
// request and tears it down on logout. Subscriptions attach before the
// initial loads run, so changes racing the load are not lost.
type SessionManager struct {
	bus    *realtime.Bus
	client remote.Client
	hub    *stream.Hub
	layer  string

	mu     gosync.Mutex
	states map[string]*UserState
}

func NewSessionManager(bus *realtime.Bus, client remote.Client, hub *stream.Hub, layer string) *SessionManager {
	return &SessionManager{
		bus:    bus,
		client: client,
		hub:    hub,
		layer:  layer,
		states: map[string]*UserState{},
	}
}

// Acquire returns the user's state, building and loading it if this is
// their first request since startup or logout.
func (m *SessionManager) Acquire(ctx context.Context, userID string) (*UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[userID]; ok {
		return st, nil
	}

	prof, err := m.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess := sync.NewSession(userID, prof, m.client, m.bus)
	st := &UserState{
		Session:  sess,
		Pins:     pin.NewService(sess, m.layer),
		Friends:  friend.NewService(sess),
		Chat:     chat.NewService(sess, m.bus),
		Profiles: profile.NewService(sess),
	}

	sess.Attach()
	if err := st.Pins.Subscribe(ctx); err != nil {
		sess.Detach()
		return nil, err
	}
	if err := st.Friends.Subscribe(ctx); err != nil {
		sess.Detach()
		return nil, err
	}
	if err := st.Chat.SubscribeGlobal(ctx); err != nil {
		sess.Detach()
		return nil, err
	}

	if m.hub != nil {
		st.unhook = sess.Store.OnChange(func(ch store.Change) {
			m.hub.Forward(userID, ch)
		})
	}
	m.states[userID] = st
	return st, nil
}

// Release tears the user's state down: subscriptions cancelled, store
// cleared, websocket forwarding unhooked.
func (m *SessionManager) Release(userID string) {
	m.mu.Lock()
	st, ok := m.states[userID]
	delete(m.states, userID)
	m.mu.Unlock()
	if !ok {
		return
	}

	st.Chat.Close()
	if st.unhook != nil {
		st.unhook()
	}
	st.Session.Detach()
}

// Active reports whether the user currently has live state.
func (m *SessionManager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[userID]
	return ok
}

func (m *SessionManager) loadProfile(ctx context.Context, userID string) (entity.Profile, error) {
	rows, err := m.client.Query(ctx, entity.Profiles,
		remote.Where(remote.Eq("id", userID)), remote.Order{})
	if err != nil {
		return entity.Profile{}, err
	}
	if len(rows) == 0 {
		// tokens can outlive profiles; a bare session still works
		return entity.Profile{ID: userID}, nil
	}
	return entity.DecodeProfile(rows[0]), nil
}
