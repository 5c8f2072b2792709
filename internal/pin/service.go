package pin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/shared/geo"
	"github.com/TheVenters/VentApp/internal/sync"
)

// Service is the mutation coordinator for pins. Writes are
// confirm-then-apply: the store changes only after the backend
// confirms, so a failed mutation leaves local state untouched.
type Service struct {
	sess  *sync.Session
	layer string
}

func NewService(sess *sync.Session, layer string) *Service {
	if layer == "" {
		layer = "public"
	}
	return &Service{sess: sess, layer: layer}
}

type CreateInput struct {
	Type      string  `json:"type"`
	Caption   string  `json:"caption"`
	MediaURL  string  `json:"media_url"`
	MediaType string  `json:"media_type"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// Load pulls the layer's pins into the store.
func (s *Service) Load(ctx context.Context) error {
	rows, err := s.sess.Client.Query(ctx, entity.Pins,
		remote.Where(remote.Eq("layer", s.layer)), remote.Desc("created_at"))
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.sess.Store.Apply(entity.Pins, row)
	}
	return nil
}

// Subscribe attaches the layer's change stream, reloading first so no
// missed event leaves a gap.
func (s *Service) Subscribe(ctx context.Context) error {
	return s.sess.Subscribe(ctx, realtime.PinChannel(s.layer), func(ctx context.Context) error {
		return s.Load(ctx)
	})
}

// List returns the layer's pins, newest first.
func (s *Service) List() []entity.Pin {
	rows := s.sess.Store.List(entity.Pins, func(r entity.Row) bool {
		return entity.Str(r, "layer") == s.layer
	})
	pins := make([]entity.Pin, 0, len(rows))
	for _, row := range rows {
		pins = append(pins, entity.DecodePin(row))
	}
	sort.Slice(pins, func(i, j int) bool {
		return pins[i].CreatedAt.After(pins[j].CreatedAt)
	})
	return pins
}

// Nearby returns the layer's pins within radiusKm of the point.
func (s *Service) Nearby(lat, lng, radiusKm float64) []entity.Pin {
	var out []entity.Pin
	for _, pin := range s.List() {
		if geo.HaversineKm(lat, lng, pin.Lat, pin.Lng) <= radiusKm {
			out = append(out, pin)
		}
	}
	return out
}

func (s *Service) Create(ctx context.Context, input CreateInput) (entity.Pin, error) {
	if err := validateCreate(input); err != nil {
		return entity.Pin{}, err
	}

	row := entity.Row{
		"user_id":         s.sess.UserID,
		"type":            input.Type,
		"lat":             input.Lat,
		"lng":             input.Lng,
		"layer":           s.layer,
		"author_name":     s.sess.Profile.Name,
		"author_username": s.sess.Profile.Username,
	}
	if input.Caption != "" {
		row["caption"] = input.Caption
	}
	if input.Type == entity.PinText {
		row["content"] = input.Caption
	} else {
		mediaType := input.MediaType
		if mediaType == "" {
			mediaType = entity.MediaPhoto
		}
		row["content"] = input.MediaURL
		row["media_url"] = input.MediaURL
		row["media_type"] = mediaType
	}

	confirmed, err := s.sess.Client.Insert(ctx, entity.Pins, row)
	if err != nil {
		return entity.Pin{}, err
	}
	s.sess.Store.Apply(entity.Pins, confirmed)
	return entity.DecodePin(confirmed), nil
}

func (s *Service) Update(ctx context.Context, id, caption, mediaURL, mediaType string) (entity.Pin, error) {
	row, ok := s.sess.Store.Get(entity.Pins, id)
	if !ok {
		return entity.Pin{}, remote.ErrNotFound
	}
	if entity.Str(row, "user_id") != s.sess.UserID {
		return entity.Pin{}, sync.ErrUnauthorized
	}

	patch := entity.Row{"updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	if entity.Str(row, "type") == entity.PinText {
		if caption == "" {
			return entity.Pin{}, fmt.Errorf("%w: text pin needs content", sync.ErrValidation)
		}
		patch["content"] = caption
		patch["caption"] = caption
	} else {
		if mediaURL == "" {
			return entity.Pin{}, fmt.Errorf("%w: media pin needs media_url", sync.ErrValidation)
		}
		if mediaType == "" {
			mediaType = entity.MediaPhoto
		}
		patch["content"] = mediaURL
		patch["media_url"] = mediaURL
		patch["media_type"] = mediaType
		patch["caption"] = caption
	}

	updated, err := s.sess.Client.Update(ctx, entity.Pins, remote.Where(remote.Eq("id", id)), patch)
	if err != nil {
		return entity.Pin{}, err
	}
	if len(updated) == 0 {
		return entity.Pin{}, remote.ErrNotFound
	}
	s.sess.Store.Apply(entity.Pins, updated[0])
	return entity.DecodePin(updated[0]), nil
}

// Delete removes the pin. A pin already gone at the backend is a
// silent success; the backend decides existence. The filter is scoped
// to the caller's user_id, so a pin owned by someone else matches
// nothing whether or not it is loaded locally.
func (s *Service) Delete(ctx context.Context, id string) error {
	if row, ok := s.sess.Store.Get(entity.Pins, id); ok {
		if entity.Str(row, "user_id") != s.sess.UserID {
			return sync.ErrUnauthorized
		}
	}

	filter := remote.Where(remote.Eq("id", id), remote.Eq("user_id", s.sess.UserID))
	if _, err := s.sess.Client.Delete(ctx, entity.Pins, filter); err != nil {
		return err
	}
	s.sess.Store.Remove(entity.Pins, id)
	return nil
}

func validateCreate(input CreateInput) error {
	switch input.Type {
	case entity.PinText:
		if input.Caption == "" {
			return fmt.Errorf("%w: text pin needs content", sync.ErrValidation)
		}
	case entity.PinMedia:
		if input.MediaURL == "" {
			return fmt.Errorf("%w: media pin needs media_url", sync.ErrValidation)
		}
		if input.MediaType != "" && input.MediaType != entity.MediaPhoto && input.MediaType != entity.MediaVideo {
			return fmt.Errorf("%w: media_type must be photo or video", sync.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: type must be text or media", sync.ErrValidation)
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return fmt.Errorf("%w: coordinate out of range", sync.ErrValidation)
	}
	return nil
}
