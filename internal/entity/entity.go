package entity

import (
	"encoding/json"
	"time"
)

// Class identifies one synchronized backend table.
type Class string

const (
	Pins           Class = "pins"
	Friends        Class = "friends"
	FriendRequests Class = "friend_requests"
	Messages       Class = "messages"
	Profiles       Class = "user_profiles"
)

// Row is a backend record as delivered by the data API or the change
// stream. Field values are converted into typed records at this boundary;
// nothing above it trusts the raw shape.
type Row map[string]any

// Clone returns a shallow copy so callers can merge without aliasing
// store-owned state.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's server-assigned identifier, or "" when absent.
func (r Row) ID() string {
	return Str(r, "id")
}

func Str(r Row, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func Float(r Row, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Time reads a timestamp field that may be a time.Time (straight from
// the database driver) or an RFC3339 string (after a JSON round trip
// through the change stream).
func Time(r Row, key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Has reports whether the field is present with a non-nil value.
func Has(r Row, key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
