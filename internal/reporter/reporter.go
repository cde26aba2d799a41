package reporter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/statushub/internal/metrics"
	"github.com/loykin/statushub/internal/status"
)

// Intake is the collector-side submission point. Satisfied by
// *collector.Collector.
type Intake interface {
	Submit(e status.Event) error
}

const defaultQueueCap = 16

// Reporter is attached to one worker and translates its state machine
// into status events. Report never blocks the worker: events go into a
// bounded pending queue drained by a pump goroutine. When the queue is
// full the oldest non-boundary event is dropped, since only the latest
// state matters for staleness; "starting" and "dropped" are never
// dropped.
type Reporter struct {
	id     status.ObjectID
	intake Intake
	logger *slog.Logger

	mu       sync.Mutex
	pending  []status.Event
	capacity int
	started  bool
	ended    bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a reporter for the object and starts its pump goroutine.
// queueCap <= 0 uses the default capacity.
func New(id status.ObjectID, intake Intake, queueCap int) *Reporter {
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	r := &Reporter{
		id:       id,
		intake:   intake,
		logger:   slog.Default().With("component", "reporter", "object", string(id)),
		capacity: queueCap,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.pump()
	return r
}

// Report submits a status observation, fire-and-forget. The worker gets
// no acknowledgement and is never blocked or failed by reporting.
func (r *Reporter) Report(kind status.Kind, errMsg string, details status.Details) {
	e := status.Event{
		ObjectID:   r.id,
		Status:     kind,
		OccurredAt: time.Now().UTC(),
		Error:      errMsg,
		Details:    details,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	switch kind {
	case status.Starting:
		// starting is reported exactly once
		if r.started {
			return
		}
		r.started = true
	case status.Dropped:
		// dropped is terminal; at most one ever
		r.ended = true
	}

	if len(r.pending) >= r.capacity {
		if !r.evictLocked() && !kind.Boundary() {
			// queue holds only boundary events; shed the incoming one
			metrics.IncOverflowDropped(string(r.id))
			return
		}
	}
	r.pending = append(r.pending, e)

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Starting reports the mandatory first lifecycle event.
func (r *Reporter) Starting() { r.Report(status.Starting, "", nil) }

// Running reports a healthy data-flowing state.
func (r *Reporter) Running() { r.Report(status.Running, "", nil) }

// Stalled reports lack of progress with an optional diagnostic.
func (r *Reporter) Stalled(errMsg string, details status.Details) {
	r.Report(status.Stalled, errMsg, details)
}

// Error reports a failure state.
func (r *Reporter) Error(errMsg string, details status.Details) {
	r.Report(status.Error, errMsg, details)
}

// Dropped reports the terminal lifecycle event.
func (r *Reporter) Dropped() { r.Report(status.Dropped, "", nil) }

// evictLocked removes the oldest droppable pending event. Returns false
// when every pending event is a boundary event.
func (r *Reporter) evictLocked() bool {
	for i, e := range r.pending {
		if !e.Status.Boundary() {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			metrics.IncOverflowDropped(string(r.id))
			return true
		}
	}
	return false
}

// Close stops the pump after draining pending events.
func (r *Reporter) Close() {
	r.mu.Lock()
	r.ended = true
	r.mu.Unlock()
	close(r.quit)
	r.wg.Wait()
}

func (r *Reporter) pump() {
	defer r.wg.Done()
	for {
		r.drain()
		select {
		case <-r.wake:
		case <-r.quit:
			r.drain()
			return
		}
	}
}

func (r *Reporter) drain() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		e := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()

		// Submission failures are best-effort by contract: log and move on.
		if err := r.intake.Submit(e); err != nil {
			r.logger.Debug("status event not accepted", "status", e.Status, "error", err)
		}
	}
}
