package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loykin/statushub/internal/catalog"
	"github.com/loykin/statushub/internal/collector"
	"github.com/loykin/statushub/internal/history"
	"github.com/loykin/statushub/internal/reporter"
	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
	"github.com/loykin/statushub/internal/view"
)

// Options configures a Hub. The zero value runs fully in-memory.
type Options struct {
	Store         store.Store      // history store, default in-memory
	Collector     collector.Config // collector tuning
	ReporterQueue int              // per-reporter pending queue capacity
	Sinks         []history.Sink   // analytics sinks
	Logger        *slog.Logger
}

// Hub wires the catalog, collector, history store and current-status
// view into one status-history subsystem.
type Hub struct {
	cat    *catalog.Catalog
	st     store.Store
	vw     *view.View
	col    *collector.Collector
	logger *slog.Logger

	queueCap  int
	mu        sync.Mutex
	reporters map[status.ObjectID]*reporter.Reporter
	closed    bool
}

func New(opts Options) (*Hub, error) {
	st := opts.Store
	if st == nil {
		st = store.NewMemory()
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure store schema: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vw := view.New()
	// a durable store may already hold logs from a previous run; the
	// view starts from their latest entries instead of empty
	ids, err := st.Objects(context.Background())
	if err != nil {
		return nil, fmt.Errorf("list stored objects: %w", err)
	}
	if len(ids) > 0 {
		if err := vw.Rebuild(context.Background(), st, ids); err != nil {
			return nil, fmt.Errorf("rebuild current view: %w", err)
		}
	}
	col := collector.New(st, vw, opts.Collector)
	col.SetLogger(logger)
	if len(opts.Sinks) > 0 {
		col.SetSinks(opts.Sinks...)
	}
	return &Hub{
		cat:       catalog.New(),
		st:        st,
		vw:        vw,
		col:       col,
		logger:    logger.With("component", "hub"),
		queueCap:  opts.ReporterQueue,
		reporters: make(map[status.ObjectID]*reporter.Reporter),
	}, nil
}

// CreateSource registers a new source and returns its catalog entry
// and the reporter its worker should use. The mandatory first
// "starting" transition is recorded automatically.
func (h *Hub) CreateSource(name string) (catalog.Object, *reporter.Reporter, error) {
	return h.create(name, status.ObjectSource)
}

// CreateSink registers a new sink.
func (h *Hub) CreateSink(name string) (catalog.Object, *reporter.Reporter, error) {
	return h.create(name, status.ObjectSink)
}

func (h *Hub) create(name string, kind status.ObjectKind) (catalog.Object, *reporter.Reporter, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return catalog.Object{}, nil, fmt.Errorf("hub closed")
	}
	h.mu.Unlock()

	obj, err := h.cat.Create(name, kind)
	if err != nil {
		return catalog.Object{}, nil, err
	}
	if err := h.col.Register(obj); err != nil {
		_, _ = h.cat.Drop(obj.ID)
		return catalog.Object{}, nil, err
	}
	rep := reporter.New(obj.ID, h.col, h.queueCap)
	h.mu.Lock()
	h.reporters[obj.ID] = rep
	h.mu.Unlock()
	h.logger.Info("object created", "object", obj.ID, "name", name, "kind", kind)
	return obj, rep, nil
}

// Drop removes the object: its reporter is detached, a terminal
// "dropped" transition is appended, further events for the id are
// rejected and the log is purged or frozen per retention policy.
func (h *Hub) Drop(id status.ObjectID) error {
	h.mu.Lock()
	rep := h.reporters[id]
	delete(h.reporters, id)
	h.mu.Unlock()
	if rep != nil {
		rep.Close()
	}
	if err := h.col.Drop(id); err != nil {
		return err
	}
	obj, err := h.cat.Drop(id)
	if err != nil {
		return err
	}
	h.logger.Info("object dropped", "object", id, "name", obj.Name)
	return nil
}

// DropByName resolves name and drops the object.
func (h *Hub) DropByName(name string) error {
	obj, ok := h.cat.Resolve(name)
	if !ok {
		return fmt.Errorf("%w: %s", status.ErrUnknownObject, name)
	}
	return h.Drop(obj.ID)
}

// Submit feeds one event into the collector, for callers that manage
// their own delivery instead of using a Reporter.
func (h *Hub) Submit(e status.Event) error { return h.col.Submit(e) }

// History returns the ordered transition log for id. Unknown or purged
// ids yield an empty result.
func (h *Hub) History(ctx context.Context, id status.ObjectID, f store.Filter) ([]store.Entry, error) {
	return h.st.History(ctx, id, f)
}

// HistoryByName resolves name through the catalog first.
func (h *Hub) HistoryByName(ctx context.Context, name string, f store.Filter) ([]store.Entry, error) {
	obj, ok := h.cat.Resolve(name)
	if !ok {
		return []store.Entry{}, nil
	}
	return h.st.History(ctx, obj.ID, f)
}

// Current returns the latest transition for id, or nil when the object
// has no recorded status.
func (h *Hub) Current(id status.ObjectID) *store.Entry {
	return h.vw.Current(id)
}

// Objects lists catalog entries of the given kind ("" for all).
func (h *Hub) Objects(kind status.ObjectKind) []catalog.Object {
	return h.cat.List(kind)
}

// Resolve maps an object name to its catalog entry.
func (h *Hub) Resolve(name string) (catalog.Object, bool) {
	return h.cat.Resolve(name)
}

// Rejections exposes the collector's operator-visible rejection channel.
func (h *Hub) Rejections() <-chan collector.Rejection {
	return h.col.Rejections()
}

// Row is one record of the queryable history relation. Column order is
// fixed: occurred_at, object_id, status, error, details.
type Row struct {
	OccurredAt time.Time       `json:"occurred_at"`
	ObjectID   status.ObjectID `json:"object_id"`
	Status     status.Kind     `json:"status"`
	Error      *string         `json:"error"`
	Details    status.Details  `json:"details"`
}

// RowFromEntry converts a store entry into a relation row.
func RowFromEntry(en store.Entry) Row {
	r := Row{
		OccurredAt: en.Event.OccurredAt.UTC(),
		ObjectID:   en.Event.ObjectID,
		Status:     en.Event.Status,
		Details:    en.Event.Details,
	}
	if en.Event.Error != "" {
		msg := en.Event.Error
		r.Error = &msg
	}
	return r
}

// Relation scans the full history relation for one object kind,
// ordered ascending by occurred_at (ties by object id then position).
func (h *Hub) Relation(ctx context.Context, kind status.ObjectKind, f store.Filter) ([]Row, error) {
	type keyed struct {
		row Row
		en  store.Entry
	}
	var all []keyed
	for _, obj := range h.cat.List(kind) {
		entries, err := h.st.History(ctx, obj.ID, f)
		if err != nil {
			return nil, err
		}
		for _, en := range entries {
			all = append(all, keyed{row: RowFromEntry(en), en: en})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].en, all[j].en
		if !a.Event.OccurredAt.Equal(b.Event.OccurredAt) {
			return a.Event.OccurredAt.Before(b.Event.OccurredAt)
		}
		if a.Event.ObjectID != b.Event.ObjectID {
			return a.Event.ObjectID < b.Event.ObjectID
		}
		return a.Pos < b.Pos
	})
	rows := make([]Row, len(all))
	for i, k := range all {
		rows[i] = k.row
	}
	return rows, nil
}

// CurrentRelation returns the latest row per object of the given kind.
// It reads one snapshot of the view, so a row per object is reported
// even while appends are in flight; entries whose object is no longer
// in the catalog are skipped.
func (h *Hub) CurrentRelation(kind status.ObjectKind) []Row {
	rows := make([]Row, 0)
	for _, en := range h.vw.Snapshot() {
		obj, ok := h.cat.Lookup(en.Event.ObjectID)
		if !ok || obj.Kind != kind {
			continue
		}
		rows = append(rows, RowFromEntry(en))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ObjectID < rows[j].ObjectID })
	return rows
}

// Close shuts the subsystem down. Objects are not dropped: their logs
// survive in the store for a later restart.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	reps := make([]*reporter.Reporter, 0, len(h.reporters))
	for _, r := range h.reporters {
		reps = append(reps, r)
	}
	h.reporters = make(map[status.ObjectID]*reporter.Reporter)
	h.mu.Unlock()

	for _, r := range reps {
		r.Close()
	}
	h.col.Close()
	return h.st.Close()
}
