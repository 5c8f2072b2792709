package remote

import (
	"context"
	"errors"

	"github.com/TheVenters/VentApp/internal/entity"
)

var (
	// ErrNotFound marks a target id absent at the backend where
	// existence is required. Deletes and cancels treat absence as
	// success instead.
	ErrNotFound = errors.New("remote: not found")
	// ErrTransport wraps network or backend failures. The caller sees
	// the mutation fail with local state untouched; no retry happens.
	ErrTransport = errors.New("remote: transport")
)

// Client is the data API the sync layer runs against: point-in-time
// reads plus confirmed writes. Every confirmed write is also published
// on the change bus, which is how subscribers observe it.
type Client interface {
	Query(ctx context.Context, class entity.Class, filter Filter, order Order) ([]entity.Row, error)
	Insert(ctx context.Context, class entity.Class, row entity.Row) (entity.Row, error)
	// InsertAll confirms the rows together or not at all; callers use it
	// for rows that only make sense as a group.
	InsertAll(ctx context.Context, class entity.Class, rows []entity.Row) ([]entity.Row, error)
	Update(ctx context.Context, class entity.Class, filter Filter, patch entity.Row) ([]entity.Row, error)
	Delete(ctx context.Context, class entity.Class, filter Filter) (int, error)
}

type CondOp string

const (
	OpEq      CondOp = "eq"
	OpNeq     CondOp = "neq"
	OpIn      CondOp = "in"
	OpIsNull  CondOp = "isnull"
	OpNotNull CondOp = "notnull"
	OpILike   CondOp = "ilike"
)

type Cond struct {
	Field string
	Op    CondOp
	Value any
}

func Eq(field string, value any) Cond      { return Cond{Field: field, Op: OpEq, Value: value} }
func Neq(field string, value any) Cond     { return Cond{Field: field, Op: OpNeq, Value: value} }
func In(field string, values []string) Cond {
	return Cond{Field: field, Op: OpIn, Value: values}
}
func IsNull(field string) Cond  { return Cond{Field: field, Op: OpIsNull} }
func NotNull(field string) Cond { return Cond{Field: field, Op: OpNotNull} }
func ILike(field, pattern string) Cond {
	return Cond{Field: field, Op: OpILike, Value: pattern}
}

// Filter is a conjunction (All) optionally combined with a disjunction
// of conjunctions (Any): All AND (Any[0] OR Any[1] OR ...). An empty
// filter matches every row.
type Filter struct {
	All []Cond
	Any [][]Cond
}

func Where(conds ...Cond) Filter {
	return Filter{All: conds}
}

// Or appends one conjunction to the disjunctive part.
func (f Filter) Or(conds ...Cond) Filter {
	f.Any = append(f.Any, conds)
	return f
}

// Match evaluates the filter against a row. Used by the in-memory
// client and by subscription-side guards.
func (f Filter) Match(row entity.Row) bool {
	for _, c := range f.All {
		if !c.match(row) {
			return false
		}
	}
	if len(f.Any) == 0 {
		return true
	}
	for _, conj := range f.Any {
		ok := true
		for _, c := range conj {
			if !c.match(row) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c Cond) match(row entity.Row) bool {
	switch c.Op {
	case OpEq:
		return row[c.Field] == c.Value
	case OpNeq:
		return row[c.Field] != c.Value
	case OpIn:
		vals, _ := c.Value.([]string)
		got := entity.Str(row, c.Field)
		for _, v := range vals {
			if got == v {
				return true
			}
		}
		return false
	case OpIsNull:
		return !entity.Has(row, c.Field)
	case OpNotNull:
		return entity.Has(row, c.Field)
	case OpILike:
		pattern, _ := c.Value.(string)
		return ilikeMatch(pattern, entity.Str(row, c.Field))
	}
	return false
}

type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }
