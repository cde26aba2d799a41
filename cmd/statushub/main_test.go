package main

import (
	"testing"
)

func TestBuildRootHasExpectedCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"serve":   false,
		"history": false,
		"current": false,
		"objects": false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestServeRequiresConfig(t *testing.T) {
	if err := runServe(""); err == nil {
		t.Fatal("expected error when no config file given")
	}
}

func TestServeRejectsMissingConfigFile(t *testing.T) {
	if err := runServe("/nonexistent/statushub.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRelationPath(t *testing.T) {
	testCases := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{"source", "sources", false},
		{"sink", "sinks", false},
		{"", "sources", false},
		{"table", "", true},
	}
	for _, tc := range testCases {
		got, err := relationPath(tc.kind)
		if tc.wantErr {
			if err == nil {
				t.Errorf("relationPath(%q): expected error", tc.kind)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("relationPath(%q) = %q, %v; want %q", tc.kind, got, err, tc.want)
		}
	}
}
