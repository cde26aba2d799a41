package store

import (
	"context"
	"errors"

	"github.com/loykin/statushub/internal/status"
)

// Entry is one accepted transition in an object's history log together
// with its position. Positions start at 1 and increase by one per
// object; they double as a restartable read cursor.
type Entry struct {
	Pos   int64        `json:"pos"`
	Event status.Event `json:"event"`
}

// Filter narrows a history read. The zero value reads everything.
type Filter struct {
	Status   status.Kind // only entries with this status when non-empty
	AfterPos int64       // entries with Pos > AfterPos (resume cursor)
	Limit    int         // max entries returned, 0 = unlimited
}

// ErrUnavailable wraps transient backend failures. The collector
// retries appends that fail with it instead of losing the event.
var ErrUnavailable = errors.New("history store unavailable")

// Store is the durable, per-object, append-only history log.
//
// Appends for the same object are serialized upstream by the collector;
// implementations only need atomicity per append and isolation between
// concurrent readers and writers. Readers must never observe a torn
// entry or an entry count that later shrinks (except through Purge).
type Store interface {
	EnsureSchema(ctx context.Context) error

	// Append adds e as the newest entry for e.ObjectID and returns its
	// position.
	Append(ctx context.Context, e status.Event) (int64, error)

	// History returns entries for id matching f, ordered by position
	// ascending (occurred_at order with arrival-order tie-breaks).
	// Unknown ids yield an empty result, not an error.
	History(ctx context.Context, id status.ObjectID, f Filter) ([]Entry, error)

	// Current returns the newest entry for id, or nil when the object
	// has no recorded history.
	Current(ctx context.Context, id status.ObjectID) (*Entry, error)

	// Objects lists the ids that currently have at least one entry.
	// Used to rebuild the current-status view after a restart.
	Objects(ctx context.Context) ([]status.ObjectID, error)

	// Purge irreversibly removes all entries for id.
	Purge(ctx context.Context, id status.ObjectID) error

	Close() error
}
