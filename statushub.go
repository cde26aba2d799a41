package statushub

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/statushub/internal/catalog"
	"github.com/loykin/statushub/internal/collector"
	cfg "github.com/loykin/statushub/internal/config"
	"github.com/loykin/statushub/internal/history"
	hfactory "github.com/loykin/statushub/internal/history/factory"
	"github.com/loykin/statushub/internal/hub"
	"github.com/loykin/statushub/internal/metrics"
	"github.com/loykin/statushub/internal/reporter"
	iapi "github.com/loykin/statushub/internal/server"
	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
	sfactory "github.com/loykin/statushub/internal/store/factory"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Event = status.Event

type Kind = status.Kind

type ObjectID = status.ObjectID

type ObjectKind = status.ObjectKind

type Details = status.Details

type Object = catalog.Object

type Reporter = reporter.Reporter

type Filter = store.Filter

type Entry = store.Entry

type Row = hub.Row

type Rejection = collector.Rejection

type CollectorConfig = collector.Config

type Retention = collector.Retention

type HistorySink = history.Sink

type Options = hub.Options

const (
	RetentionPurge  = collector.RetentionPurge
	RetentionRetain = collector.RetentionRetain
)

const (
	Starting = status.Starting
	Running  = status.Running
	Stalled  = status.Stalled
	Error    = status.Error
	Dropped  = status.Dropped

	ObjectSource = status.ObjectSource
	ObjectSink   = status.ObjectSink
)

// ErrUnavailable is returned by stores when the backend cannot accept
// an append right now; the collector retries such appends.
var ErrUnavailable = store.ErrUnavailable

var (
	ErrUnknownObject  = status.ErrUnknownObject
	ErrMalformedEvent = status.ErrMalformedEvent
)

// RegisterStatusKind makes an additional status kind acceptable to
// event validation. Built-in kinds are always known.
func RegisterStatusKind(k Kind) { status.RegisterKind(k) }

// Hub is a thin facade over internal/hub.Hub.
// It provides a stable public API for embedding.

type Hub struct{ inner *hub.Hub }

func New(opts Options) (*Hub, error) {
	h, err := hub.New(opts)
	if err != nil {
		return nil, err
	}
	return &Hub{inner: h}, nil
}

func (h *Hub) CreateSource(name string) (Object, *Reporter, error) { return h.inner.CreateSource(name) }
func (h *Hub) CreateSink(name string) (Object, *Reporter, error)   { return h.inner.CreateSink(name) }
func (h *Hub) Drop(id ObjectID) error                              { return h.inner.Drop(id) }
func (h *Hub) DropByName(name string) error                        { return h.inner.DropByName(name) }
func (h *Hub) Submit(e Event) error                                { return h.inner.Submit(e) }
func (h *Hub) Current(id ObjectID) *Entry                          { return h.inner.Current(id) }
func (h *Hub) Objects(kind ObjectKind) []Object                    { return h.inner.Objects(kind) }
func (h *Hub) Resolve(name string) (Object, bool)                  { return h.inner.Resolve(name) }
func (h *Hub) Rejections() <-chan Rejection                        { return h.inner.Rejections() }
func (h *Hub) Close() error                                        { return h.inner.Close() }

func (h *Hub) History(ctx context.Context, id ObjectID, f Filter) ([]Entry, error) {
	return h.inner.History(ctx, id, f)
}

func (h *Hub) HistoryByName(ctx context.Context, name string, f Filter) ([]Entry, error) {
	return h.inner.HistoryByName(ctx, name, f)
}

func (h *Hub) Relation(ctx context.Context, kind ObjectKind, f Filter) ([]Row, error) {
	return h.inner.Relation(ctx, kind, f)
}

func (h *Hub) CurrentRelation(kind ObjectKind) []Row { return h.inner.CurrentRelation(kind) }

// RowFromEntry converts a store entry into a relation row.
func RowFromEntry(en Entry) Row { return hub.RowFromEntry(en) }

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (*cfg.FileConfig, error) {
	return cfg.Load(path)
}

// NewStore builds a history store from a DSN. Empty or "memory"
// selects the in-memory store; "sqlite://path" a sqlite file;
// "postgres://..." a postgres database.
func NewStore(dsn string) (store.Store, error) { return sfactory.NewFromDSN(dsn) }

// NewHistorySink builds an analytics sink from a DSN, for example
// "clickhouse://localhost:9000?table=status_history".
func NewHistorySink(dsn string) (HistorySink, error) { return hfactory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts an HTTP server exposing the catalog query
// surface for the given hub.
func NewHTTPServer(addr, basePath string, h *Hub) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, h.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsHandler returns the Prometheus exposition handler for the
// default registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
