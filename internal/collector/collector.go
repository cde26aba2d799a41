package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/statushub/internal/catalog"
	"github.com/loykin/statushub/internal/history"
	"github.com/loykin/statushub/internal/metrics"
	"github.com/loykin/statushub/internal/status"
	"github.com/loykin/statushub/internal/store"
	"github.com/loykin/statushub/internal/view"
)

// Retention controls what happens to an object's history when it is
// dropped from the catalog.
type Retention string

const (
	RetentionPurge  Retention = "purge"  // delete the log
	RetentionRetain Retention = "retain" // freeze the log, reject new events
)

// Rejection is an event the collector refused, delivered on the
// operator-visible rejection channel.
type Rejection struct {
	Event status.Event
	Err   error
}

// Config tunes the collector. Zero values fall back to defaults.
type Config struct {
	QueueSize        int           // per-object apply queue capacity (default 64)
	Retention        Retention     // default purge
	MaxRetryInterval time.Duration // append retry backoff cap (default 5s)
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Retention == "" {
		c.Retention = RetentionPurge
	}
	if c.MaxRetryInterval <= 0 {
		c.MaxRetryInterval = 5 * time.Second
	}
	return c
}

// Collector is the single ingestion funnel. Reporters submit events
// concurrently; the collector routes each to a per-object apply loop
// that deduplicates, clamps timestamps monotone, appends to the store
// and maintains the current-status view. Loops for different objects
// never block each other.
type Collector struct {
	cfg     Config
	st      store.Store
	vw      *view.View
	sinks   []history.Sink
	logger  *slog.Logger
	rejects chan Rejection

	ctx    context.Context
	cancel context.CancelFunc
	// closed during Close so append retry loops give up instead of
	// spinning; without it an unavailable store would wedge shutdown.
	closing chan struct{}

	mu     sync.Mutex
	objs   map[status.ObjectID]*objectQueue
	closed bool
	wg     sync.WaitGroup
}

type objectQueue struct {
	obj catalog.Object

	// mu guards sends against close: the channel is only closed while
	// holding it, so a send can never hit a closed channel.
	mu      sync.Mutex
	ch      chan status.Event
	done    chan struct{}
	dropped bool
}

// enqueue delivers e to the apply loop unless the object was dropped.
// It may block while the bounded queue is full.
func (oq *objectQueue) enqueue(e status.Event) bool {
	oq.mu.Lock()
	defer oq.mu.Unlock()
	if oq.dropped {
		return false
	}
	oq.ch <- e
	return true
}

// seal marks the queue dropped and closes it, optionally delivering a
// final event first.
func (oq *objectQueue) seal(final *status.Event) bool {
	oq.mu.Lock()
	defer oq.mu.Unlock()
	if oq.dropped {
		return false
	}
	oq.dropped = true
	if final != nil {
		oq.ch <- *final
	}
	close(oq.ch)
	return true
}

func New(st store.Store, vw *view.View, cfg Config) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		cfg:     cfg.withDefaults(),
		st:      st,
		vw:      vw,
		logger:  slog.Default().With("component", "collector"),
		rejects: make(chan Rejection, 128),
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
		objs:    make(map[status.ObjectID]*objectQueue),
	}
}

// SetSinks configures external analytics sinks. Delivery is best-effort
// and happens after the durable append.
func (c *Collector) SetSinks(sinks ...history.Sink) {
	c.mu.Lock()
	c.sinks = append([]history.Sink(nil), sinks...)
	c.mu.Unlock()
}

// SetLogger overrides the default slog logger.
func (c *Collector) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l.With("component", "collector")
	}
}

// Rejections exposes refused events to operators. The channel is
// buffered; when nobody drains it, rejections are counted and logged
// but never block ingestion.
func (c *Collector) Rejections() <-chan Rejection { return c.rejects }

// Register starts an apply loop for obj and enqueues the mandatory
// first "starting" event.
func (c *Collector) Register(obj catalog.Object) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("collector closed")
	}
	if _, exists := c.objs[obj.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("object %s already registered", obj.ID)
	}
	oq := &objectQueue{
		obj:  obj,
		ch:   make(chan status.Event, c.cfg.QueueSize),
		done: make(chan struct{}),
	}
	c.objs[obj.ID] = oq
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(oq)

	oq.enqueue(status.Event{
		ObjectID:   obj.ID,
		Status:     status.Starting,
		OccurredAt: time.Now().UTC(),
	})
	metrics.IncReceived(string(status.Starting))
	return nil
}

// Submit accepts one event and routes it to the owning object's apply
// queue. Events for the same object are applied in Submit order; events
// for unknown or dropped objects are rejected. Submit may block briefly
// when the object's queue is full, never on other objects.
func (c *Collector) Submit(e status.Event) error {
	if err := e.Validate(); err != nil {
		c.reject(e, err, "malformed")
		return err
	}
	metrics.IncReceived(string(e.Status))

	c.mu.Lock()
	oq, ok := c.objs[e.ObjectID]
	closed := c.closed
	c.mu.Unlock()
	if !ok || closed || !oq.enqueue(e) {
		err := fmt.Errorf("%w: %s", status.ErrUnknownObject, e.ObjectID)
		c.reject(e, err, "unknown_object")
		return err
	}
	return nil
}

// Drop seals the object's queue, appends the terminal "dropped" event
// and waits for the apply loop to drain. Afterwards no events for id
// are accepted, and the log is purged or frozen per retention policy.
func (c *Collector) Drop(id status.ObjectID) error {
	c.mu.Lock()
	oq, ok := c.objs[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", status.ErrUnknownObject, id)
	}

	final := status.Event{
		ObjectID:   id,
		Status:     status.Dropped,
		OccurredAt: time.Now().UTC(),
	}
	if !oq.seal(&final) {
		return fmt.Errorf("%w: %s", status.ErrUnknownObject, id)
	}
	metrics.IncReceived(string(status.Dropped))
	<-oq.done

	c.mu.Lock()
	delete(c.objs, id)
	c.mu.Unlock()
	return nil
}

// Close stops all apply loops without dropping objects. Queued events
// that were already accepted by Submit are still applied when the
// store cooperates; events stuck in an unavailable-store retry loop
// are abandoned (and logged) so Close always returns.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	queues := make([]*objectQueue, 0, len(c.objs))
	for _, oq := range c.objs {
		queues = append(queues, oq)
	}
	c.mu.Unlock()

	close(c.closing)
	for _, oq := range queues {
		oq.seal(nil)
	}
	c.wg.Wait()
	c.cancel()
}

// run is the per-object apply loop. It alone appends for its object,
// which serializes the log without any cross-object lock.
func (c *Collector) run(oq *objectQueue) {
	defer c.wg.Done()

	var last *status.Event
	for e := range oq.ch {
		if last != nil && last.SameTransition(e) {
			metrics.IncDeduplicated(string(e.Status))
			continue
		}
		// per-object monotone timestamps; ties keep arrival order via pos
		if last != nil && e.OccurredAt.Before(last.OccurredAt) {
			e.OccurredAt = last.OccurredAt
		}

		pos, err := c.appendWithRetry(e)
		if err != nil {
			c.logger.Error("append failed, event lost",
				"object", e.ObjectID, "status", e.Status, "error", err)
			c.reject(e, err, "store_error")
			continue
		}

		en := store.Entry{Pos: pos, Event: e}
		c.vw.Apply(en)
		metrics.IncAccepted(string(e.Status))
		prev := ""
		if last != nil {
			prev = string(last.Status)
		}
		metrics.SetObjectState(string(e.ObjectID), prev, string(e.Status))
		c.fanOut(oq.obj, en)

		ecopy := e
		last = &ecopy
	}

	if c.retentionFor(oq) == RetentionPurge {
		if err := c.st.Purge(context.Background(), oq.obj.ID); err != nil {
			c.logger.Error("purge failed", "object", oq.obj.ID, "error", err)
		}
		c.vw.Forget(oq.obj.ID)
	}
	metrics.ClearObjectState(string(oq.obj.ID))
	close(oq.done)
}

func (c *Collector) retentionFor(oq *objectQueue) Retention {
	// Close() seals queues without dropping; only a real Drop purges.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return RetentionRetain
	}
	return c.cfg.Retention
}

// appendWithRetry retries transient store failures with capped
// exponential backoff. An accepted event is only lost when the
// collector shuts down with the store still unavailable.
func (c *Collector) appendWithRetry(e status.Event) (int64, error) {
	backoff := 100 * time.Millisecond
	for {
		pos, err := c.st.Append(c.ctx, e)
		if err == nil {
			return pos, nil
		}
		if !errors.Is(err, store.ErrUnavailable) {
			return 0, err
		}
		metrics.IncAppendRetry()
		c.logger.Warn("store unavailable, retrying append",
			"object", e.ObjectID, "backoff", backoff, "error", err)
		select {
		case <-time.After(backoff):
		case <-c.closing:
			return 0, fmt.Errorf("append abandoned at shutdown: %w", err)
		case <-c.ctx.Done():
			return 0, c.ctx.Err()
		}
		if backoff *= 2; backoff > c.cfg.MaxRetryInterval {
			backoff = c.cfg.MaxRetryInterval
		}
	}
}

func (c *Collector) fanOut(obj catalog.Object, en store.Entry) {
	c.mu.Lock()
	sinks := c.sinks
	c.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	rec := history.Record{
		ObjectKind: obj.Kind,
		ObjectName: obj.Name,
		Pos:        en.Pos,
		Event:      en.Event,
	}
	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
		if err := s.Send(ctx, rec); err != nil {
			c.logger.Warn("history sink send failed",
				"object", obj.ID, "error", err)
		}
		cancel()
	}
}

func (c *Collector) reject(e status.Event, err error, reason string) {
	metrics.IncRejected(reason)
	select {
	case c.rejects <- Rejection{Event: e, Err: err}:
	default:
		c.logger.Warn("rejection channel full, dropping notification",
			"object", e.ObjectID, "reason", reason)
	}
}
