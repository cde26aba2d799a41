package factory

import (
	"strings"
	"testing"
)

func TestNewSinkFromDSN_Rejections(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
		want string
	}{
		{"empty", "", "empty sink DSN"},
		{"whitespace", "   ", "empty sink DSN"},
		{"unknown scheme", "kafka://localhost:9092", "unsupported sink DSN"},
		{"plain path", "/tmp/history.db", "unsupported sink DSN"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSinkFromDSN(tc.dsn)
			if err == nil {
				t.Fatalf("NewSinkFromDSN(%q) expected error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want containing %q", err, tc.want)
			}
		})
	}
}
