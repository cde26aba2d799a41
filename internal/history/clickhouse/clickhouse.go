package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/statushub/internal/history"
)

// Sink sends accepted transitions to ClickHouse using the official
// ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Sink{conn: conn, table: table}, nil
}

// EnsureSchema creates the transitions table when it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		occurred_at DateTime64(3, 'UTC'),
		object_id String,
		object_kind String,
		object_name String,
		pos Int64,
		status String,
		error Nullable(String),
		details Nullable(String)
	) ENGINE = MergeTree() ORDER BY (object_id, pos)`, s.table)
	return s.conn.Exec(ctx, query)
}

func (s *Sink) Send(ctx context.Context, r history.Record) error {
	var errCol any
	if r.Event.Error != "" {
		errCol = r.Event.Error
	}
	var detailsCol any
	if j, ok := r.Event.DetailsJSON(); ok {
		detailsCol = j
	}
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, object_id, object_kind, object_name, pos, status, error, details) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	err := s.conn.Exec(ctx, query,
		r.Event.OccurredAt.UTC(),
		string(r.Event.ObjectID),
		string(r.ObjectKind),
		r.ObjectName,
		r.Pos,
		string(r.Event.Status),
		errCol,
		detailsCol,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
