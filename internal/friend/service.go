package friend

import (
	"context"
	"fmt"
	"time"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"
)

// Service coordinates the friends graph: requests, acceptance, and the
// symmetric edge pair. Friendship is materialized as two directed rows,
// created and removed together, never singly.
type Service struct {
	sess *sync.Session
}

func NewService(sess *sync.Session) *Service {
	return &Service{sess: sess}
}

// Load pulls the user's edges and pending requests (both directions).
func (s *Service) Load(ctx context.Context) error {
	if err := s.loadEdges(ctx); err != nil {
		return err
	}
	return s.loadRequests(ctx)
}

func (s *Service) loadEdges(ctx context.Context) error {
	filter := remote.Filter{}.
		Or(remote.Eq("user_id", s.sess.UserID)).
		Or(remote.Eq("friend_id", s.sess.UserID))
	rows, err := s.sess.Client.Query(ctx, entity.Friends, filter, remote.Order{})
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.sess.Store.Apply(entity.Friends, row)
	}
	return nil
}

func (s *Service) loadRequests(ctx context.Context) error {
	filter := remote.Where(remote.Eq("status", entity.StatusPending)).
		Or(remote.Eq("to_user_id", s.sess.UserID)).
		Or(remote.Eq("from_user_id", s.sess.UserID))
	rows, err := s.sess.Client.Query(ctx, entity.FriendRequests, filter, remote.Order{})
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.sess.Store.Apply(entity.FriendRequests, row)
	}
	return nil
}

// Subscribe attaches both friend-graph streams for the session user.
func (s *Service) Subscribe(ctx context.Context) error {
	if err := s.sess.Subscribe(ctx, realtime.FriendChannel(s.sess.UserID), func(ctx context.Context) error {
		return s.loadEdges(ctx)
	}); err != nil {
		return err
	}
	return s.sess.Subscribe(ctx, realtime.RequestChannel(s.sess.UserID), func(ctx context.Context) error {
		return s.loadRequests(ctx)
	})
}

// Friends returns the peer ids of the user's accepted friendships.
func (s *Service) Friends() []string {
	rows := s.sess.Store.List(entity.Friends, func(r entity.Row) bool {
		return entity.Str(r, "user_id") == s.sess.UserID
	})
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.Str(row, "friend_id"))
	}
	return out
}

// PendingRequests returns requests waiting on the session user.
func (s *Service) PendingRequests() []entity.FriendRequest {
	return s.requests(func(fr entity.FriendRequest) bool {
		return fr.ToUserID == s.sess.UserID && fr.Status == entity.StatusPending
	})
}

// SentRequests returns the user's own pending requests.
func (s *Service) SentRequests() []entity.FriendRequest {
	return s.requests(func(fr entity.FriendRequest) bool {
		return fr.FromUserID == s.sess.UserID && fr.Status == entity.StatusPending
	})
}

func (s *Service) requests(keep func(entity.FriendRequest) bool) []entity.FriendRequest {
	rows := s.sess.Store.List(entity.FriendRequests, nil)
	var out []entity.FriendRequest
	for _, row := range rows {
		fr := entity.DecodeFriendRequest(row)
		if keep(fr) {
			out = append(out, fr)
		}
	}
	return out
}

// IsFriend reports whether peer is an accepted friend.
func (s *Service) IsFriend(peerID string) bool {
	edges := s.sess.Store.List(entity.Friends, func(r entity.Row) bool {
		return entity.Str(r, "user_id") == s.sess.UserID && entity.Str(r, "friend_id") == peerID
	})
	return len(edges) > 0
}

func (s *Service) SendRequest(ctx context.Context, toUserID string) (entity.FriendRequest, error) {
	if toUserID == "" || toUserID == s.sess.UserID {
		return entity.FriendRequest{}, fmt.Errorf("%w: bad recipient", sync.ErrValidation)
	}
	if s.IsFriend(toUserID) {
		return entity.FriendRequest{}, fmt.Errorf("%w: already friends", sync.ErrValidation)
	}
	if s.pendingBetween(s.sess.UserID, toUserID) != nil {
		return entity.FriendRequest{}, fmt.Errorf("%w: request already pending", sync.ErrValidation)
	}

	confirmed, err := s.sess.Client.Insert(ctx, entity.FriendRequests, entity.Row{
		"from_user_id": s.sess.UserID,
		"to_user_id":   toUserID,
		"status":       entity.StatusPending,
	})
	if err != nil {
		return entity.FriendRequest{}, err
	}
	s.sess.Store.Apply(entity.FriendRequests, confirmed)
	return entity.DecodeFriendRequest(confirmed), nil
}

// Accept transitions the request to accepted and materializes the edge
// pair, one row per direction.
func (s *Service) Accept(ctx context.Context, fromUserID string) error {
	updated, err := s.sess.Client.Update(ctx, entity.FriendRequests,
		remote.Where(
			remote.Eq("from_user_id", fromUserID),
			remote.Eq("to_user_id", s.sess.UserID),
			remote.Eq("status", entity.StatusPending),
		),
		entity.Row{"status": entity.StatusAccepted, "updated_at": now()})
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return remote.ErrNotFound
	}
	for _, row := range updated {
		s.sess.Store.Apply(entity.FriendRequests, row)
	}

	pair := []entity.Row{
		{"user_id": s.sess.UserID, "friend_id": fromUserID},
		{"user_id": fromUserID, "friend_id": s.sess.UserID},
	}
	confirmed, err := s.sess.Client.InsertAll(ctx, entity.Friends, pair)
	if err != nil {
		return err
	}
	for _, row := range confirmed {
		s.sess.Store.Apply(entity.Friends, row)
	}
	return nil
}

func (s *Service) Reject(ctx context.Context, fromUserID string) error {
	updated, err := s.sess.Client.Update(ctx, entity.FriendRequests,
		remote.Where(
			remote.Eq("from_user_id", fromUserID),
			remote.Eq("to_user_id", s.sess.UserID),
			remote.Eq("status", entity.StatusPending),
		),
		entity.Row{"status": entity.StatusRejected, "updated_at": now()})
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return remote.ErrNotFound
	}
	for _, row := range updated {
		s.sess.Store.Apply(entity.FriendRequests, row)
	}
	return nil
}

// Cancel withdraws the user's own pending request. Cancelling a request
// that no longer exists succeeds silently.
func (s *Service) Cancel(ctx context.Context, toUserID string) error {
	_, err := s.sess.Client.Delete(ctx, entity.FriendRequests,
		remote.Where(
			remote.Eq("from_user_id", s.sess.UserID),
			remote.Eq("to_user_id", toUserID),
		))
	if err != nil {
		return err
	}
	if local := s.pendingBetween(s.sess.UserID, toUserID); local != nil {
		s.sess.Store.Remove(entity.FriendRequests, local.ID)
	}
	return nil
}

// RemoveFriend deletes both directed rows of the friendship.
func (s *Service) RemoveFriend(ctx context.Context, friendID string) error {
	filter := remote.Filter{}.
		Or(remote.Eq("user_id", s.sess.UserID), remote.Eq("friend_id", friendID)).
		Or(remote.Eq("user_id", friendID), remote.Eq("friend_id", s.sess.UserID))
	if _, err := s.sess.Client.Delete(ctx, entity.Friends, filter); err != nil {
		return err
	}

	edges := s.sess.Store.List(entity.Friends, func(r entity.Row) bool {
		u, f := entity.Str(r, "user_id"), entity.Str(r, "friend_id")
		return (u == s.sess.UserID && f == friendID) || (u == friendID && f == s.sess.UserID)
	})
	for _, row := range edges {
		s.sess.Store.Remove(entity.Friends, row.ID())
	}
	return nil
}

func (s *Service) pendingBetween(fromID, toID string) *entity.FriendRequest {
	rows := s.sess.Store.List(entity.FriendRequests, func(r entity.Row) bool {
		return entity.Str(r, "from_user_id") == fromID &&
			entity.Str(r, "to_user_id") == toID &&
			entity.Str(r, "status") == entity.StatusPending
	})
	if len(rows) == 0 {
		return nil
	}
	fr := entity.DecodeFriendRequest(rows[0])
	return &fr
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
