package factory

import (
	"testing"

	"github.com/loykin/statushub/internal/store"
	"github.com/loykin/statushub/internal/store/sqlite"
)

func TestNewFromDSN(t *testing.T) {
	testCases := []struct {
		name    string
		dsn     string
		want    string // "memory", "sqlite", or "" for error
		wantErr bool
	}{
		{"empty defaults to memory", "", "memory", false},
		{"memory scheme", "memory:", "memory", false},
		{"bare memory", "memory", "memory", false},
		{"sqlite in-memory", "sqlite://:memory:", "sqlite", false},
		{"plain path is sqlite", ":memory:", "sqlite", false},
		{"unknown scheme", "mysql://localhost/db", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := NewFromDSN(tc.dsn)
			if tc.wantErr {
				if err == nil {
					t.Errorf("NewFromDSN(%q) expected error", tc.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromDSN(%q): %v", tc.dsn, err)
			}
			defer func() { _ = st.Close() }()

			switch tc.want {
			case "memory":
				if _, ok := st.(*store.Memory); !ok {
					t.Errorf("NewFromDSN(%q) = %T, want *store.Memory", tc.dsn, st)
				}
			case "sqlite":
				if _, ok := st.(*sqlite.DB); !ok {
					t.Errorf("NewFromDSN(%q) = %T, want *sqlite.DB", tc.dsn, st)
				}
			}
		})
	}
}
