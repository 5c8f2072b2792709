package sync

import (
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/store"
)

// Reconciler applies remote change events to the entity store. It is
// last-writer-wins per field and treats every remote event as
// authoritative over local optimistic state for the fields it carries.
// Events arriving out of their commit order are applied as-is; there is
// no causal ordering or reorder detection.
type Reconciler struct {
	store *store.Store
}

func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// Handle applies one event:
//   - insert: upsert; a row already materialized by an optimistic local
//     write merges by id instead of duplicating
//   - update: upsert even when the row is absent (the insert may have
//     been missed), synthesized from the update payload
//   - delete: remove; the store notifies removal exactly once, so a
//     remote delete racing a local delete is a no-op
func (r *Reconciler) Handle(ev realtime.Event) {
	switch ev.Op {
	case realtime.OpInsert, realtime.OpUpdate:
		r.store.Apply(ev.Class, ev.Row)
	case realtime.OpDelete:
		r.store.Remove(ev.Class, ev.Row.ID())
	}
}
