// Package testutil provides trace fixtures shared by package tests.
package testutil

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/trace"
)

// Span returns a complete ("X") event.
func Span(name string, ts, dur float64) trace.Event {
	return trace.Event{Phase: "X", Name: name, Start: ts, Duration: dur}
}

// Kernel returns a device kernel event carrying an External id.
func Kernel(name string, ts, dur float64, externalID int) trace.Event {
	e := Span(name, ts, dur)
	e.Category = "kernel"
	e.Args = map[string]any{"External id": float64(externalID)}
	return e
}

// Memory returns a memory instant event as recorded by the profiler.
func Memory(ts, allocated, reserved float64) trace.Event {
	return trace.Event{
		Phase:    "i",
		Category: "cpu_instant_event",
		Name:     "[memory]",
		Start:    ts,
		Duration: math.NaN(),
		Args:     map[string]any{"Total Allocated": allocated, "Total Reserved": reserved},
	}
}

// TraceJSON encodes events as a Chrome trace document.
func TraceJSON(t testing.TB, events ...trace.Event) []byte {
	t.Helper()
	if events == nil {
		events = []trace.Event{}
	}
	data, err := json.Marshal(map[string]any{"traceEvents": events})
	if err != nil {
		t.Fatalf("failed to encode trace: %v", err)
	}
	return data
}

// WriteTrace stores events as a trace document at path.
func WriteTrace(t testing.TB, fsys fsutil.FileSystem, path string, events ...trace.Event) {
	t.Helper()
	if err := fsys.WriteFile(path, TraceJSON(t, events...), 0644); err != nil {
		t.Fatalf("failed to write trace %s: %v", path, err)
	}
}
