package factory

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

// A DSN-built sink must be usable immediately: the factory owns the
// schema setup, no manual table creation step in between.
func TestNewSinkFromDSN_ClickHouseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

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
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	sink, err := NewSinkFromDSN("clickhouse://" + host + ":" + port.Port() + "?table=dsn_history")
	if err != nil {
		t.Fatalf("Failed to create sink from DSN: %v", err)
	}
	defer func() {
		if closer, ok := sink.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	rec := history.Record{
		ObjectKind: status.ObjectSource,
		ObjectName: "orders_kafka",
		Pos:        1,
		Event:      status.Event{ObjectID: "s1", Status: status.Starting, OccurredAt: time.Now().UTC()},
	}
	if err := sink.Send(ctx, rec); err != nil {
		t.Fatalf("Send into freshly created sink failed: %v", err)
	}
}
