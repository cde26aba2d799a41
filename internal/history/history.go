package history

import (
	"context"

	"github.com/loykin/statushub/internal/status"
)

// Record is one accepted transition as delivered to external sinks.
type Record struct {
	ObjectKind status.ObjectKind `json:"object_kind"`
	ObjectName string            `json:"object_name"`
	Pos        int64             `json:"pos"`
	Event      status.Event      `json:"event"`
}

// Sink is a destination for accepted transitions (analytics/statistics
// systems). Sinks are best-effort: a failing sink never blocks or fails
// the durable append path. Implementations must be safe for concurrent
// use.
type Sink interface {
	Send(ctx context.Context, r Record) error
}
