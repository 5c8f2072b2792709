package entity

import "time"

const (
	PinText  = "text"
	PinMedia = "media"

	MediaPhoto = "photo"
	MediaVideo = "video"

	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

type Pin struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Type           string     `json:"type"`
	Content        string     `json:"content"`
	Caption        string     `json:"caption"`
	MediaURL       string     `json:"media_url"`
	MediaType      string     `json:"media_type"`
	Lat            float64    `json:"lat"`
	Lng            float64    `json:"lng"`
	Layer          string     `json:"layer"`
	AuthorName     string     `json:"author_name"`
	AuthorUsername string     `json:"author_username"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type FriendEdge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FriendID  string    `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FriendRequest struct {
	ID         string     `json:"id"`
	FromUserID string     `json:"from_user_id"`
	ToUserID   string     `json:"to_user_id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	ID         string     `json:"id"`
	FromUserID string     `json:"from_user_id"`
	ToUserID   string     `json:"to_user_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func DecodePin(r Row) Pin {
	p := Pin{
		ID:             r.ID(),
		UserID:         Str(r, "user_id"),
		Type:           Str(r, "type"),
		Content:        Str(r, "content"),
		Caption:        Str(r, "caption"),
		MediaURL:       Str(r, "media_url"),
		MediaType:      Str(r, "media_type"),
		Lat:            Float(r, "lat"),
		Lng:            Float(r, "lng"),
		Layer:          Str(r, "layer"),
		AuthorName:     Str(r, "author_name"),
		AuthorUsername: Str(r, "author_username"),
	}
	p.CreatedAt, _ = Time(r, "created_at")
	if ts, ok := Time(r, "updated_at"); ok {
		p.UpdatedAt = &ts
	}
	return p
}

func DecodeFriendEdge(r Row) FriendEdge {
	e := FriendEdge{
		ID:       r.ID(),
		UserID:   Str(r, "user_id"),
		FriendID: Str(r, "friend_id"),
	}
	e.CreatedAt, _ = Time(r, "created_at")
	return e
}

func DecodeFriendRequest(r Row) FriendRequest {
	fr := FriendRequest{
		ID:         r.ID(),
		FromUserID: Str(r, "from_user_id"),
		ToUserID:   Str(r, "to_user_id"),
		Status:     Str(r, "status"),
	}
	fr.CreatedAt, _ = Time(r, "created_at")
	if ts, ok := Time(r, "updated_at"); ok {
		fr.UpdatedAt = &ts
	}
	return fr
}

func DecodeMessage(r Row) Message {
	m := Message{
		ID:         r.ID(),
		FromUserID: Str(r, "from_user_id"),
		ToUserID:   Str(r, "to_user_id"),
		Content:    Str(r, "content"),
	}
	m.CreatedAt, _ = Time(r, "created_at")
	if ts, ok := Time(r, "read_at"); ok {
		m.ReadAt = &ts
	}
	return m
}

func DecodeProfile(r Row) Profile {
	p := Profile{
		ID:        r.ID(),
		Username:  Str(r, "username"),
		Name:      Str(r, "name"),
		AvatarURL: Str(r, "avatar_url"),
	}
	p.CreatedAt, _ = Time(r, "created_at")
	return p
}
