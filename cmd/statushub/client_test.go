package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/statushub"
	"github.com/loykin/statushub/internal/hub"
	"github.com/loykin/statushub/internal/server"
)

func newTestServer(t *testing.T) (*hub.Hub, *APIClient) {
	t.Helper()
	h, err := hub.New(hub.Options{})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	srv := httptest.NewServer(server.NewRouter(h, "/status").Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = h.Close()
	})
	return h, NewAPIClient(srv.URL+"/status", 2*time.Second)
}

func waitApplied(t *testing.T, h *hub.Hub, id statushub.ObjectID, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := h.History(context.Background(), id, statushub.Filter{})
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(entries) >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("history for %s stuck at %d entries, want %d", id, len(entries), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAPIClientHistory(t *testing.T) {
	h, client := newTestServer(t)
	obj, rep, err := h.CreateSource("clicks")
	if err != nil {
		t.Fatal(err)
	}
	rep.Running()
	waitApplied(t, h, obj.ID, 2)

	rows, err := client.History("source", "clicks", HistoryQuery{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 || rows[0].Status != statushub.Starting || rows[1].Status != statushub.Running {
		t.Fatalf("rows = %+v", rows)
	}

	rows, err = client.History("source", "clicks", HistoryQuery{Status: "running"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != statushub.Running {
		t.Fatalf("filtered rows = %+v", rows)
	}
}

func TestAPIClientHistoryUnknownObjectEmpty(t *testing.T) {
	_, client := newTestServer(t)
	rows, err := client.History("source", "never-registered", HistoryQuery{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %+v, want empty", rows)
	}
}

func TestAPIClientCurrent(t *testing.T) {
	h, client := newTestServer(t)
	obj, rep, _ := h.CreateSink("warehouse")
	rep.Running()
	waitApplied(t, h, obj.ID, 2)

	rows, err := client.Current("sink", "warehouse")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != statushub.Running {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestAPIClientObjects(t *testing.T) {
	h, client := newTestServer(t)
	_, _, _ = h.CreateSource("in")
	_, _, _ = h.CreateSink("out")

	objs, err := client.Objects("")
	if err != nil {
		t.Fatalf("objects: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("objects = %+v", objs)
	}

	objs, err = client.Objects("sink")
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || objs[0].Name != "out" {
		t.Fatalf("sink objects = %+v", objs)
	}

	if _, err := client.Objects("table"); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestAPIClientInvalidKind(t *testing.T) {
	client := NewAPIClient("", 0)
	if _, err := client.History("table", "", HistoryQuery{}); err == nil {
		t.Fatal("expected error for invalid kind")
	}
	if _, err := client.Current("table", ""); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestAPIClientIsReachable(t *testing.T) {
	_, client := newTestServer(t)
	if !client.IsReachable() {
		t.Fatal("expected running server to be reachable")
	}

	down := NewAPIClient("http://127.0.0.1:1/status", 200*time.Millisecond)
	if down.IsReachable() {
		t.Fatal("expected unreachable server")
	}
}
