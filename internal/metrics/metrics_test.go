package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncReceived("running")
	IncReceived("running")
	IncAccepted("running")
	IncDeduplicated("running")
	IncRejected("unknown_object")
	IncOverflowDropped("s1")
	IncAppendRetry()
	SetObjectState("s1", "", "starting")
	SetObjectState("s1", "starting", "running")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"statushub_events_received_total":         false,
		"statushub_events_accepted_total":         false,
		"statushub_events_deduplicated_total":     false,
		"statushub_events_rejected_total":         false,
		"statushub_events_overflow_dropped_total": false,
		"statushub_store_append_retries_total":    false,
		"statushub_objects_current_state":         false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestSetObjectStateClearsPrevious(t *testing.T) {
	// Register is a no-op once the collectors are registered elsewhere in
	// this binary, so register the gauge into a scratch registry directly.
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(objectState); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			t.Fatal(err)
		}
	}
	SetObjectState("k9", "", "starting")
	SetObjectState("k9", "starting", "running")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "statushub_objects_current_state" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var object, state string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "object":
					object = l.GetValue()
				case "state":
					state = l.GetValue()
				}
			}
			if object != "k9" {
				continue
			}
			want := 0.0
			if state == "running" {
				want = 1.0
			}
			if m.GetGauge().GetValue() != want {
				t.Errorf("state %s gauge = %v, want %v", state, m.GetGauge().GetValue(), want)
			}
		}
	}

	ClearObjectState("k9")
}

func TestHandlerServesMetrics(t *testing.T) {
	_ = Register(prometheus.DefaultRegisterer)
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected default runtime metrics in output")
	}
}
