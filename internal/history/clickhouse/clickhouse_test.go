package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/statushub/internal/history"
	"github.com/loykin/statushub/internal/status"
)

// setupClickHouseContainer starts a ClickHouse container for testing.
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return clickHouseContainer, host + ":" + port.Port()
}

func TestSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "status_history")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	records := []history.Record{
		{
			ObjectKind: status.ObjectSource,
			ObjectName: "orders_kafka",
			Pos:        1,
			Event:      status.Event{ObjectID: "s1", Status: status.Starting, OccurredAt: base},
		},
		{
			ObjectKind: status.ObjectSource,
			ObjectName: "orders_kafka",
			Pos:        2,
			Event: status.Event{ObjectID: "s1", Status: status.Error, OccurredAt: base.Add(time.Second),
				Error: "broker unreachable", Details: status.Details{"broker": "kafka-0:9092"}},
		},
	}
	for i, r := range records {
		if err := sink.Send(ctx, r); err != nil {
			t.Fatalf("Failed to send record %d: %v", i, err)
		}
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, `SELECT count() FROM status_history WHERE object_id = 's1'`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("stored rows = %d, want 2", count)
	}
}
