package profile

import (
	"context"
	"fmt"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"
)

// Service looks up user profiles for search and display. Results are
// fetched on demand, not kept in the session store: profile rows
// change rarely and searches are unbounded.
type Service struct {
	sess *sync.Session
}

func NewService(sess *sync.Session) *Service {
	return &Service{sess: sess}
}

// Search matches the query against username and display name,
// case-insensitively, excluding the searching user.
func (s *Service) Search(ctx context.Context, query string) ([]entity.Profile, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", sync.ErrValidation)
	}
	pattern := "%" + query + "%"
	filter := remote.Where(remote.Neq("id", s.sess.UserID)).
		Or(remote.ILike("username", pattern)).
		Or(remote.ILike("name", pattern))
	rows, err := s.sess.Client.Query(ctx, entity.Profiles, filter, remote.Asc("username"))
	if err != nil {
		return nil, err
	}
	return decodeAll(rows), nil
}

// ByIDs fetches the named profiles. Unknown ids are simply absent from
// the result.
func (s *Service) ByIDs(ctx context.Context, ids []string) ([]entity.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.sess.Client.Query(ctx, entity.Profiles,
		remote.Where(remote.In("id", ids)), remote.Asc("username"))
	if err != nil {
		return nil, err
	}
	return decodeAll(rows), nil
}

// ByID fetches one profile.
func (s *Service) ByID(ctx context.Context, id string) (entity.Profile, error) {
	rows, err := s.sess.Client.Query(ctx, entity.Profiles,
		remote.Where(remote.Eq("id", id)), remote.Order{})
	if err != nil {
		return entity.Profile{}, err
	}
	if len(rows) == 0 {
		return entity.Profile{}, fmt.Errorf("profile %s: %w", id, remote.ErrNotFound)
	}
	return entity.DecodeProfile(rows[0]), nil
}

func decodeAll(rows []entity.Row) []entity.Profile {
	out := make([]entity.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.DecodeProfile(row))
	}
	return out
}
