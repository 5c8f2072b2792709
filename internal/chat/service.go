package chat

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"
)

// Service coordinates direct messages and exposes the unread counts
// derived from the store's maintained index. At most one conversation
// is active at a time; completion handlers racing a conversation
// switch check the active peer before applying their effect.
type Service struct {
	sess *sync.Session
	bus  *realtime.Bus

	mu         gosync.Mutex
	activePeer string
	convSub    *realtime.Subscription
}

func NewService(sess *sync.Session, bus *realtime.Bus) *Service {
	return &Service{sess: sess, bus: bus}
}

// SubscribeGlobal attaches the "any message touching me" stream and
// loads the user's unread backlog, keeping badges live while no
// conversation is open.
func (s *Service) SubscribeGlobal(ctx context.Context) error {
	return s.sess.Subscribe(ctx, realtime.MessageChannel(s.sess.UserID), func(ctx context.Context) error {
		return s.LoadUnread(ctx)
	})
}

// LoadUnread pulls every unread message addressed to the session user.
func (s *Service) LoadUnread(ctx context.Context) error {
	rows, err := s.sess.Client.Query(ctx, entity.Messages,
		remote.Where(
			remote.Eq("to_user_id", s.sess.UserID),
			remote.IsNull("read_at"),
		), remote.Order{})
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.sess.Store.Apply(entity.Messages, row)
	}
	return nil
}

// Open makes peerID the active conversation: loads its history, marks
// the peer's unread messages read, and watches for newly arriving
// messages to mark as they land.
func (s *Service) Open(ctx context.Context, peerID string) ([]entity.Message, error) {
	if peerID == "" {
		return nil, fmt.Errorf("%w: peer required", sync.ErrValidation)
	}

	s.mu.Lock()
	if s.convSub != nil {
		s.convSub.Cancel()
	}
	s.activePeer = peerID
	s.convSub = s.bus.Subscribe(realtime.MessageChannel(s.sess.UserID), func(ev realtime.Event) {
		s.onConversationEvent(peerID, ev)
	})
	s.mu.Unlock()

	if err := s.loadConversation(ctx, peerID); err != nil {
		return nil, err
	}

	// the load was in flight; if the view switched meanwhile, drop the
	// mark-read side effect
	if s.currentPeer() != peerID {
		return nil, nil
	}
	if err := s.markRead(ctx, peerID); err != nil {
		return nil, err
	}
	return s.Conversation(peerID), nil
}

// Close ends the active conversation's subscription. Its entities stay.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.convSub != nil {
		s.convSub.Cancel()
		s.convSub = nil
	}
	s.activePeer = ""
}

// Send delivers a message to peerID, confirm-then-apply.
func (s *Service) Send(ctx context.Context, peerID, content string) (entity.Message, error) {
	if peerID == "" {
		return entity.Message{}, fmt.Errorf("%w: peer required", sync.ErrValidation)
	}
	if content == "" {
		return entity.Message{}, fmt.Errorf("%w: empty message content", sync.ErrValidation)
	}

	confirmed, err := s.sess.Client.Insert(ctx, entity.Messages, entity.Row{
		"from_user_id": s.sess.UserID,
		"to_user_id":   peerID,
		"content":      content,
	})
	if err != nil {
		return entity.Message{}, err
	}
	s.sess.Store.Apply(entity.Messages, confirmed)
	return entity.DecodeMessage(confirmed), nil
}

// Conversation returns the stored messages with peerID, oldest first.
func (s *Service) Conversation(peerID string) []entity.Message {
	rows := s.sess.Store.List(entity.Messages, func(r entity.Row) bool {
		from, to := entity.Str(r, "from_user_id"), entity.Str(r, "to_user_id")
		return (from == s.sess.UserID && to == peerID) || (from == peerID && to == s.sess.UserID)
	})
	msgs := make([]entity.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, entity.DecodeMessage(row))
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

// TotalUnread is the exact unread count across all peers, uncapped.
func (s *Service) TotalUnread() int {
	return s.sess.Store.TotalUnread()
}

// UnreadFor is the exact unread count from one peer.
func (s *Service) UnreadFor(peerID string) int {
	return s.sess.Store.UnreadFor(peerID)
}

// UnreadByPeer returns the whole badge map.
func (s *Service) UnreadByPeer() map[string]int {
	return s.sess.Store.UnreadByPeer()
}

func (s *Service) currentPeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

func (s *Service) loadConversation(ctx context.Context, peerID string) error {
	filter := remote.Filter{}.
		Or(remote.Eq("from_user_id", s.sess.UserID), remote.Eq("to_user_id", peerID)).
		Or(remote.Eq("from_user_id", peerID), remote.Eq("to_user_id", s.sess.UserID))
	rows, err := s.sess.Client.Query(ctx, entity.Messages, filter, remote.Asc("created_at"))
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.sess.Store.Apply(entity.Messages, row)
	}
	return nil
}

// markRead transitions every unread message from peerID. read_at is
// set once and never cleared.
func (s *Service) markRead(ctx context.Context, peerID string) error {
	unread := s.sess.Store.List(entity.Messages, func(r entity.Row) bool {
		return entity.Str(r, "from_user_id") == peerID &&
			entity.Str(r, "to_user_id") == s.sess.UserID &&
			!entity.Has(r, "read_at")
	})
	if len(unread) == 0 {
		return nil
	}
	ids := make([]string, 0, len(unread))
	for _, row := range unread {
		ids = append(ids, row.ID())
	}

	updated, err := s.sess.Client.Update(ctx, entity.Messages,
		remote.Where(remote.In("id", ids)),
		entity.Row{"read_at": time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return err
	}
	for _, row := range updated {
		s.sess.Store.Apply(entity.Messages, row)
	}
	return nil
}

// onConversationEvent marks messages read as they arrive while their
// conversation is on screen. The peer guard drops deliveries for a
// conversation that is no longer active.
func (s *Service) onConversationEvent(peerID string, ev realtime.Event) {
	if ev.Class != entity.Messages || s.currentPeer() != peerID {
		return
	}
	msg := entity.DecodeMessage(ev.Row)
	if msg.FromUserID != peerID || msg.ToUserID != s.sess.UserID || msg.ReadAt != nil {
		return
	}
	// the mark-read write publishes its own event; doing it off the
	// delivery goroutine keeps the bus re-entrancy free
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.currentPeer() != peerID {
			return
		}
		s.sess.Store.Apply(entity.Messages, ev.Row)
		// on failure the count stays until the next open or reload
		_ = s.markRead(ctx, peerID)
	}()
}
