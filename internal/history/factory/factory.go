package factory

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/statushub/internal/history"
	"github.com/loykin/statushub/internal/history/clickhouse"
)

// NewSinkFromDSN creates an analytics sink based on DSN format.
// Supported formats:
//   - "clickhouse://host:port?table=table"
func NewSinkFromDSN(dsn string) (history.Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty sink DSN")
	}

	lower := strings.ToLower(dsn)

	if strings.HasPrefix(lower, "clickhouse://") {
		return parseClickHouseDSN(dsn)
	}

	return nil, errors.New("unsupported sink DSN format: " + dsn)
}

func parseClickHouseDSN(dsn string) (history.Sink, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}

	host := u.Host
	if host == "" {
		host = "localhost:9000" // default ClickHouse native port
	}

	table := u.Query().Get("table")
	if table == "" {
		table = "status_history"
	}

	sink, err := clickhouse.New(host, table)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.EnsureSchema(ctx); err != nil {
		_ = sink.Close()
		return nil, err
	}
	return sink, nil
}
