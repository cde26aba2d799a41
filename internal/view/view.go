package view

import (
	"context"
	"sync"

	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
)

// View is the incrementally maintained latest-row-per-object index over
// the history store. It is never authoritative: every entry it holds
// was first accepted by the store, and Rebuild reconstructs the whole
// index by replaying the log.
type View struct {
	mu     sync.RWMutex
	latest map[status.ObjectID]store.Entry
}

func New() *View {
	return &View{latest: make(map[status.ObjectID]store.Entry)}
}

// Apply records en as the newest entry for its object. Called by the
// collector after a successful append; stale positions are ignored so
// a Rebuild racing an Apply cannot move the index backwards.
func (v *View) Apply(en store.Entry) {
	id := en.Event.ObjectID
	v.mu.Lock()
	if cur, ok := v.latest[id]; !ok || en.Pos > cur.Pos {
		v.latest[id] = en
	}
	v.mu.Unlock()
}

// Current returns the latest entry for id, or nil when none exists.
func (v *View) Current(id status.ObjectID) *store.Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if en, ok := v.latest[id]; ok {
		return &en
	}
	return nil
}

// Snapshot returns the latest entry of every tracked object.
func (v *View) Snapshot() []store.Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]store.Entry, 0, len(v.latest))
	for _, en := range v.latest {
		out = append(out, en)
	}
	return out
}

// Forget drops id from the index after a purge.
func (v *View) Forget(id status.ObjectID) {
	v.mu.Lock()
	delete(v.latest, id)
	v.mu.Unlock()
}

// Rebuild reconstructs the index for the given objects from the store,
// replacing whatever the view currently holds.
func (v *View) Rebuild(ctx context.Context, st store.Store, ids []status.ObjectID) error {
	fresh := make(map[status.ObjectID]store.Entry, len(ids))
	for _, id := range ids {
		en, err := st.Current(ctx, id)
		if err != nil {
			return err
		}
		if en != nil {
			fresh[id] = *en
		}
	}
	v.mu.Lock()
	v.latest = fresh
	v.mu.Unlock()
	return nil
}
