package store

import (
	"sync"

	"github.com/TheVenters/VentApp/internal/entity"
)

type Kind string

const (
	Added   Kind = "added"
	Updated Kind = "updated"
	Removed Kind = "removed"
)

// Change describes one applied mutation, delivered to listeners so
// presentation can add/update/remove markers and list rows.
type Change struct {
	Kind  Kind         `json:"kind"`
	Class entity.Class `json:"class"`
	ID    string       `json:"id"`
	Row   entity.Row   `json:"row,omitempty"`
}

// Store is the session-local snapshot of remote rows. Upserts merge
// field-by-field, last writer wins: fields present in the incoming row
// overwrite, fields it omits survive. All mutation goes through Apply
// and Remove, which serialize on one mutex, so no reader ever sees a
// half-merged row. Listeners run after the merge completes and may
// mutate the store again.
type Store struct {
	selfID string

	mu     sync.Mutex
	rows   map[entity.Class]map[string]entity.Row
	unread map[string]int

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

func New(selfID string) *Store {
	return &Store{
		selfID: selfID,
		rows:   map[entity.Class]map[string]entity.Row{},
		unread: map[string]int{},
	}
}

// SelfID returns the session owner the store was built for.
func (s *Store) SelfID() string {
	return s.selfID
}

// Apply inserts the row or merges it over the existing one. The second
// return is false when the row carries no id and nothing was applied.
func (s *Store) Apply(class entity.Class, row entity.Row) (Change, bool) {
	id := row.ID()
	if id == "" {
		return Change{}, false
	}

	s.mu.Lock()
	byID := s.rows[class]
	if byID == nil {
		byID = map[string]entity.Row{}
		s.rows[class] = byID
	}

	existing, present := byID[id]
	var merged entity.Row
	if present {
		merged = existing.Clone()
		for k, v := range row {
			merged[k] = v
		}
	} else {
		merged = row.Clone()
	}
	byID[id] = merged

	if class == entity.Messages {
		s.adjustUnread(existing, merged)
	}
	s.mu.Unlock()

	kind := Added
	if present {
		kind = Updated
	}
	change := Change{Kind: kind, Class: class, ID: id, Row: merged.Clone()}
	s.notify(change)
	return change, true
}

// Remove deletes the row. Removing an absent id is a no-op and notifies
// nobody, so a remote delete event racing a local delete fires the
// removal exactly once.
func (s *Store) Remove(class entity.Class, id string) bool {
	s.mu.Lock()
	byID := s.rows[class]
	existing, present := byID[id]
	if present {
		delete(byID, id)
		if class == entity.Messages {
			s.adjustUnread(existing, nil)
		}
	}
	s.mu.Unlock()

	if !present {
		return false
	}
	s.notify(Change{Kind: Removed, Class: class, ID: id})
	return true
}

func (s *Store) Get(class entity.Class, id string) (entity.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[class][id]
	if !ok {
		return nil, false
	}
	return row.Clone(), true
}

// List returns every row of class matching pred. A nil pred matches all.
func (s *Store) List(class entity.Class, pred func(entity.Row) bool) []entity.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Row
	for _, row := range s.rows[class] {
		if pred == nil || pred(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// ClearClass drops every row of one class without notifying listeners.
// Used for teardown and for full reloads after a resubscribe.
func (s *Store) ClearClass(class entity.Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, class)
	if class == entity.Messages {
		s.unread = map[string]int{}
	}
}

// Clear drops all local state, including the unread index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = map[entity.Class]map[string]entity.Row{}
	s.unread = map[string]int{}
}

// UnreadFor returns the number of unread messages from peer, O(1) from
// the maintained index.
func (s *Store) UnreadFor(peerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[peerID]
}

// TotalUnread returns the unread count across all peers.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.unread {
		total += n
	}
	return total
}

// UnreadByPeer returns a copy of the per-peer unread index.
func (s *Store) UnreadByPeer() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.unread))
	for peer, n := range s.unread {
		out[peer] = n
	}
	return out
}

// OnChange registers a listener and returns its unregister func.
func (s *Store) OnChange(fn func(Change)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	if s.listeners == nil {
		s.listeners = map[int]func(Change){}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(change Change) {
	s.lmu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// adjustUnread keeps the per-peer index in step with one message row
// transition. after == nil means the row was removed. Must be called
// with s.mu held.
func (s *Store) adjustUnread(before, after entity.Row) {
	if before != nil && s.isUnread(before) {
		peer := entity.Str(before, "from_user_id")
		if s.unread[peer]--; s.unread[peer] <= 0 {
			delete(s.unread, peer)
		}
	}
	if after != nil && s.isUnread(after) {
		s.unread[entity.Str(after, "from_user_id")]++
	}
}

func (s *Store) isUnread(row entity.Row) bool {
	return entity.Str(row, "to_user_id") == s.selfID && !entity.Has(row, "read_at")
}
