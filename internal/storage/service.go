package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/TheVenters/VentApp/internal/db"
	"github.com/TheVenters/VentApp/internal/entity"

	"github.com/google/uuid"
)

// Service registers uploaded media and hands back the URL a media pin
// stores in its media_url column.
type Service struct {
	db      db.Querier
	baseURL string
}

func NewService(q db.Querier, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://media.ventapp.example/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Service{db: q, baseURL: baseURL}
}

type MediaObject struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	MediaType string    `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrBadMediaType = errors.New("media_type must be photo or video")

func (s *Service) SaveMedia(ctx context.Context, userID, fileName, mediaType string) (MediaObject, error) {
	if mediaType != entity.MediaPhoto && mediaType != entity.MediaVideo {
		return MediaObject{}, ErrBadMediaType
	}
	if fileName == "" {
		fileName = "upload"
	}

	obj := MediaObject{
		ID:        uuid.NewString(),
		UserID:    userID,
		MediaType: mediaType,
		CreatedAt: time.Now().UTC(),
	}
	obj.URL = s.baseURL + obj.ID + "/" + fileName

	_, err := s.db.Exec(ctx, `
		INSERT INTO media_objects (id, user_id, url, media_type)
		VALUES ($1,$2,$3,$4)
	`, obj.ID, obj.UserID, obj.URL, obj.MediaType)
	if err != nil {
		return MediaObject{}, err
	}
	return obj, nil
}
