package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TheVenters/VentApp/internal/db"
	"github.com/TheVenters/VentApp/internal/entity"
	"github.com/TheVenters/VentApp/internal/realtime"

	"github.com/google/uuid"
)

// Postgres implements Client over the relational backend. Each
// confirmed write publishes an authoritative change event on the bus,
// which is the system's row-change stream.
type Postgres struct {
	db  db.Querier
	bus *realtime.Bus
}

func NewPostgres(q db.Querier, bus *realtime.Bus) *Postgres {
	return &Postgres{db: q, bus: bus}
}

func (p *Postgres) Query(ctx context.Context, class entity.Class, filter Filter, order Order) ([]entity.Row, error) {
	sql := "SELECT * FROM " + string(class)
	where, args := buildWhere(filter, 1)
	if where != "" {
		sql += " WHERE " + where
	}
	if order.Field != "" {
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		sql += " ORDER BY " + order.Field + " " + dir
	}

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []entity.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		row := entity.Row{}
		for i, fd := range fields {
			if vals[i] != nil {
				row[string(fd.Name)] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return out, nil
}

func (p *Postgres) Insert(ctx context.Context, class entity.Class, row entity.Row) (entity.Row, error) {
	inserted, err := p.InsertAll(ctx, class, []entity.Row{row})
	if err != nil {
		return nil, err
	}
	return inserted[0], nil
}

// InsertAll renders the batch as one multi-row INSERT. A single
// statement either commits every row or none of them.
func (p *Postgres) InsertAll(ctx context.Context, class entity.Class, rows []entity.Row) ([]entity.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	inserted := make([]entity.Row, 0, len(rows))
	colSet := map[string]struct{}{}
	for _, row := range rows {
		r := row.Clone()
		if r.ID() == "" {
			r["id"] = uuid.NewString()
		}
		if !entity.Has(r, "created_at") {
			r["created_at"] = time.Now().UTC()
		}
		for col := range r {
			colSet[col] = struct{}{}
		}
		inserted = append(inserted, r)
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var args []any
	tuples := make([]string, len(inserted))
	for i, r := range inserted {
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			placeholders[j] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, r[col])
		}
		tuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		class, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	if _, err := p.db.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	for _, r := range inserted {
		p.publish(ctx, realtime.OpInsert, class, r)
	}
	return inserted, nil
}

func (p *Postgres) Update(ctx context.Context, class entity.Class, filter Filter, patch entity.Row) ([]entity.Row, error) {
	cols := make([]string, 0, len(patch))
	for col := range patch {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args[i] = patch[col]
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", class, strings.Join(sets, ", "))
	where, whereArgs := buildWhere(filter, len(args)+1)
	if where != "" {
		sql += " WHERE " + where
		args = append(args, whereArgs...)
	}
	sql += " RETURNING *"

	updated, err := p.collect(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	for _, row := range updated {
		p.publish(ctx, realtime.OpUpdate, class, row)
	}
	return updated, nil
}

func (p *Postgres) Delete(ctx context.Context, class entity.Class, filter Filter) (int, error) {
	sql := "DELETE FROM " + string(class)
	where, args := buildWhere(filter, 1)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " RETURNING *"

	deleted, err := p.collect(ctx, sql, args)
	if err != nil {
		return 0, err
	}
	for _, row := range deleted {
		p.publish(ctx, realtime.OpDelete, class, row)
	}
	return len(deleted), nil
}

func (p *Postgres) collect(ctx context.Context, sql string, args []any) ([]entity.Row, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []entity.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		row := entity.Row{}
		for i, fd := range fields {
			if vals[i] != nil {
				row[string(fd.Name)] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return out, nil
}

func (p *Postgres) publish(ctx context.Context, op realtime.Op, class entity.Class, row entity.Row) {
	if p.bus == nil {
		return
	}
	ev := realtime.Event{Op: op, Class: class, Row: jsonSafe(row)}
	for _, channel := range ChannelsFor(class, row) {
		_ = p.bus.Publish(ctx, channel, ev)
	}
}

// buildWhere renders the filter as a parameterized WHERE body. Field
// names come from this package's callers, never from user input.
func buildWhere(f Filter, argStart int) (string, []any) {
	var args []any
	next := func() int { return argStart + len(args) }

	renderCond := func(c Cond) string {
		switch c.Op {
		case OpEq:
			n := next()
			args = append(args, c.Value)
			return fmt.Sprintf("%s = $%d", c.Field, n)
		case OpNeq:
			n := next()
			args = append(args, c.Value)
			return fmt.Sprintf("%s <> $%d", c.Field, n)
		case OpIn:
			n := next()
			args = append(args, c.Value)
			return fmt.Sprintf("%s = ANY($%d)", c.Field, n)
		case OpIsNull:
			return c.Field + " IS NULL"
		case OpNotNull:
			return c.Field + " IS NOT NULL"
		case OpILike:
			n := next()
			args = append(args, c.Value)
			return fmt.Sprintf("%s ILIKE $%d", c.Field, n)
		}
		return "FALSE"
	}

	var parts []string
	for _, c := range f.All {
		parts = append(parts, renderCond(c))
	}
	if len(f.Any) > 0 {
		var branches []string
		for _, conj := range f.Any {
			var conds []string
			for _, c := range conj {
				conds = append(conds, renderCond(c))
			}
			branches = append(branches, "("+strings.Join(conds, " AND ")+")")
		}
		parts = append(parts, "("+strings.Join(branches, " OR ")+")")
	}
	return strings.Join(parts, " AND "), args
}

// ChannelsFor routes a row change to the channels whose subscribers
// should observe it.
func ChannelsFor(class entity.Class, row entity.Row) []string {
	switch class {
	case entity.Pins:
		layer := entity.Str(row, "layer")
		if layer == "" {
			layer = "public"
		}
		return []string{realtime.PinChannel(layer)}
	case entity.Messages:
		return []string{
			realtime.MessageChannel(entity.Str(row, "from_user_id")),
			realtime.MessageChannel(entity.Str(row, "to_user_id")),
		}
	case entity.Friends:
		return []string{
			realtime.FriendChannel(entity.Str(row, "user_id")),
			realtime.FriendChannel(entity.Str(row, "friend_id")),
		}
	case entity.FriendRequests:
		return []string{
			realtime.RequestChannel(entity.Str(row, "from_user_id")),
			realtime.RequestChannel(entity.Str(row, "to_user_id")),
		}
	}
	return nil
}

// jsonSafe normalizes row values so they survive the JSON round trip
// through the bus identically on both sides.
func jsonSafe(row entity.Row) entity.Row {
	out := row.Clone()
	for k, v := range out {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.Format(time.RFC3339Nano)
		}
	}
	return out
}
