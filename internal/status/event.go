package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ObjectID identifies a source or sink within the platform. IDs are
// allocated by the catalog and are opaque to everything else.
type ObjectID string

// ObjectKind distinguishes the two relation instances exposed to readers.
type ObjectKind string

const (
	ObjectSource ObjectKind = "source"
	ObjectSink   ObjectKind = "sink"
)

// Kind is the reported health state of an object.
type Kind string

const (
	Starting Kind = "starting"
	Running  Kind = "running"
	Stalled  Kind = "stalled"
	Error    Kind = "error"
	Dropped  Kind = "dropped"
)

var kindsMu sync.RWMutex

var knownKinds = map[Kind]struct{}{
	Starting: {},
	Running:  {},
	Stalled:  {},
	Error:    {},
	Dropped:  {},
}

// RegisterKind adds a platform-specific status kind so events carrying
// it pass validation. The five builtin kinds are always registered.
func RegisterKind(k Kind) {
	kindsMu.Lock()
	knownKinds[k] = struct{}{}
	kindsMu.Unlock()
}

func kindKnown(k Kind) bool {
	kindsMu.RLock()
	_, ok := knownKinds[k]
	kindsMu.RUnlock()
	return ok
}

// Boundary reports whether k marks the beginning or end of an object's
// lifecycle. Boundary events are exempt from queue overflow drops.
func (k Kind) Boundary() bool { return k == Starting || k == Dropped }

// Details is a free-form diagnostic payload attached to an event.
// A nil map means "no details" and renders as SQL NULL.
type Details map[string]any

// Event is a single observed health state of one object at a point in
// time. Events are immutable once constructed.
type Event struct {
	ObjectID   ObjectID  `json:"object_id"`
	Status     Kind      `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
	Error      string    `json:"error,omitempty"`
	Details    Details   `json:"details,omitempty"`
}

var (
	ErrMalformedEvent = errors.New("malformed status event")
	ErrUnknownObject  = errors.New("unknown object")
)

// Validate checks the structural rules for an event before it enters
// the collector. Object existence is checked separately by the catalog.
func (e Event) Validate() error {
	if strings.TrimSpace(string(e.ObjectID)) == "" {
		return fmt.Errorf("%w: empty object id", ErrMalformedEvent)
	}
	if strings.TrimSpace(string(e.Status)) == "" {
		return fmt.Errorf("%w: empty status", ErrMalformedEvent)
	}
	if !kindKnown(e.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrMalformedEvent, e.Status)
	}
	if e.Error != "" && e.Status != Error && e.Status != Stalled {
		return fmt.Errorf("%w: error message on status %q", ErrMalformedEvent, e.Status)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: zero occurred_at", ErrMalformedEvent)
	}
	return nil
}

// SameTransition reports whether o carries the same (status, error,
// details) triple as e. Adjacent equal transitions are deduplicated so
// the log records state changes, not polling snapshots.
func (e Event) SameTransition(o Event) bool {
	if e.Status != o.Status || e.Error != o.Error {
		return false
	}
	return e.Details.key() == o.Details.key()
}

// key returns a canonical representation for comparison. json.Marshal
// sorts map keys, so equal maps always produce equal strings.
func (d Details) key() string {
	if len(d) == 0 {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("!%v", d)
	}
	return string(b)
}

// DetailsJSON renders the details payload for SQL storage. It returns
// ok=false when there is nothing to store (column stays NULL).
func (e Event) DetailsJSON() (string, bool) {
	if len(e.Details) == 0 {
		return "", false
	}
	return e.Details.key(), true
}

// ParseDetails decodes a stored JSON payload back into Details.
func ParseDetails(s string) (Details, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var d Details
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, err
	}
	return d, nil
}
