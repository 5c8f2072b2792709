package remote

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"

	"github.com/google/uuid"
)

// Memory is an in-process Client used by tests and local development.
// It follows the same write-then-publish discipline as Postgres.
type Memory struct {
	mu   sync.Mutex
	rows map[entity.Class]map[string]entity.Row
	bus  *realtime.Bus

	// FailWith, when set, makes every call fail. Lets tests exercise
	// transport-error paths.
	FailWith error
}

func NewMemory(bus *realtime.Bus) *Memory {
	return &Memory{
		rows: map[entity.Class]map[string]entity.Row{},
		bus:  bus,
	}
}

// Seed loads a row without publishing, for test fixtures.
func (m *Memory) Seed(class entity.Class, row entity.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[class] == nil {
		m.rows[class] = map[string]entity.Row{}
	}
	m.rows[class][row.ID()] = row.Clone()
}

func (m *Memory) Query(_ context.Context, class entity.Class, filter Filter, order Order) ([]entity.Row, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	var out []entity.Row
	for _, row := range m.rows[class] {
		if filter.Match(row) {
			out = append(out, row.Clone())
		}
	}
	m.mu.Unlock()

	if order.Field != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti, iok := entity.Time(out[i], order.Field)
			tj, jok := entity.Time(out[j], order.Field)
			if iok && jok {
				if order.Desc {
					return ti.After(tj)
				}
				return ti.Before(tj)
			}
			si, sj := entity.Str(out[i], order.Field), entity.Str(out[j], order.Field)
			if order.Desc {
				return si > sj
			}
			return si < sj
		})
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, class entity.Class, row entity.Row) (entity.Row, error) {
	inserted, err := m.InsertAll(ctx, class, []entity.Row{row})
	if err != nil {
		return nil, err
	}
	return inserted[0], nil
}

// InsertAll stores the whole batch under one lock hold, so either all
// rows land or none do.
func (m *Memory) InsertAll(ctx context.Context, class entity.Class, rows []entity.Row) ([]entity.Row, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	inserted := make([]entity.Row, 0, len(rows))
	for _, row := range rows {
		r := row.Clone()
		if r.ID() == "" {
			r["id"] = uuid.NewString()
		}
		if !entity.Has(r, "created_at") {
			r["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		}
		inserted = append(inserted, r)
	}

	m.mu.Lock()
	if m.rows[class] == nil {
		m.rows[class] = map[string]entity.Row{}
	}
	for _, r := range inserted {
		m.rows[class][r.ID()] = r.Clone()
	}
	m.mu.Unlock()

	for _, r := range inserted {
		m.publish(ctx, realtime.OpInsert, class, r)
	}
	return inserted, nil
}

func (m *Memory) Update(ctx context.Context, class entity.Class, filter Filter, patch entity.Row) ([]entity.Row, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	var updated []entity.Row
	for id, row := range m.rows[class] {
		if !filter.Match(row) {
			continue
		}
		merged := row.Clone()
		for k, v := range patch {
			merged[k] = v
		}
		m.rows[class][id] = merged
		updated = append(updated, merged.Clone())
	}
	m.mu.Unlock()

	for _, row := range updated {
		m.publish(ctx, realtime.OpUpdate, class, row)
	}
	return updated, nil
}

func (m *Memory) Delete(ctx context.Context, class entity.Class, filter Filter) (int, error) {
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	m.mu.Lock()
	var deleted []entity.Row
	for id, row := range m.rows[class] {
		if filter.Match(row) {
			deleted = append(deleted, row)
			delete(m.rows[class], id)
		}
	}
	m.mu.Unlock()

	for _, row := range deleted {
		m.publish(ctx, realtime.OpDelete, class, row)
	}
	return len(deleted), nil
}

func (m *Memory) publish(ctx context.Context, op realtime.Op, class entity.Class, row entity.Row) {
	if m.bus == nil {
		return
	}
	ev := realtime.Event{Op: op, Class: class, Row: jsonSafe(row)}
	for _, channel := range ChannelsFor(class, row) {
		_ = m.bus.Publish(ctx, channel, ev)
	}
}

// ilikeMatch supports the %-wildcard subset the app uses, matching
// case-insensitively.
func ilikeMatch(pattern, value string) bool {
	p := strings.ToLower(pattern)
	v := strings.ToLower(value)

	parts := strings.Split(p, "%")
	if len(parts) == 1 {
		return v == p
	}

	if parts[0] != "" && !strings.HasPrefix(v, parts[0]) {
		return false
	}
	v = strings.TrimPrefix(v, parts[0])

	last := parts[len(parts)-1]
	middle := parts[1 : len(parts)-1]
	for _, part := range middle {
		if part == "" {
			continue
		}
		idx := strings.Index(v, part)
		if idx < 0 {
			return false
		}
		v = v[idx+len(part):]
	}
	if last != "" && !strings.HasSuffix(v, last) {
		return false
	}
	return true
}
