package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statushub.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
[store]
dsn = "sqlite:///var/lib/statushub/history.db"

[collector]
queue_size = 128
retention = "retain"
max_retry_interval = "10s"

[server]
listen = ":9090"
base_path = "/api/status"

[log]
path = "/var/log/statushub/statushub.log"
level = "debug"
max_size_mb = 20

[[sinks]]
dsn = "clickhouse://ch0:9000?table=status_history"
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Store.DSN != "sqlite:///var/lib/statushub/history.db" {
		t.Errorf("store dsn = %q", fc.Store.DSN)
	}
	if fc.Collector.QueueSize != 128 || fc.Collector.Retention != "retain" {
		t.Errorf("collector = %+v", fc.Collector)
	}
	if fc.Collector.MaxRetryInterval != 10*time.Second {
		t.Errorf("max_retry_interval = %v", fc.Collector.MaxRetryInterval)
	}
	if fc.Server.Listen != ":9090" || fc.Server.BasePath != "/api/status" {
		t.Errorf("server = %+v", fc.Server)
	}
	if fc.Log == nil || fc.Log.Level != "debug" || fc.Log.MaxSizeMB != 20 {
		t.Errorf("log = %+v", fc.Log)
	}
	if len(fc.Sinks) != 1 || fc.Sinks[0].DSN != "clickhouse://ch0:9000?table=status_history" {
		t.Errorf("sinks = %+v", fc.Sinks)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[store]
dsn = "memory:"
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Server.Listen != ":8080" {
		t.Errorf("default listen = %q", fc.Server.Listen)
	}
	if fc.Server.BasePath != "/status" {
		t.Errorf("default base_path = %q", fc.Server.BasePath)
	}
	if fc.Collector.QueueSize != 64 {
		t.Errorf("default queue_size = %d", fc.Collector.QueueSize)
	}
	if fc.Collector.Retention != "purge" {
		t.Errorf("default retention = %q", fc.Collector.Retention)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"bad retention", "[collector]\nretention = \"forever\"\n"},
		{"bad base path", "[server]\nbase_path = \"status\"\n"},
		{"empty sink dsn", "[[sinks]]\ndsn = \"\"\n"},
		{"not toml", "{\"store\": 1\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
