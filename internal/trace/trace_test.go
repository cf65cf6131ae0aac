package trace

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

const sampleTrace = `{
  "schemaVersion": 1,
  "traceEvents": [
    {"ph": "X", "cat": "cpu_op", "name": "aten::mm", "pid": 1, "tid": 7, "ts": 100, "dur": 50,
     "args": {"External id": 2049, "Sequence number": 21662}},
    {"ph": "X", "cat": "kernel", "name": "ncclDevKernel_Generic_4", "pid": 0, "tid": "stream 7", "ts": 120, "dur": 40},
    {"ph": "i", "cat": "instant", "name": "marker", "ts": 130},
    {"ph": "M", "name": "process_name", "args": {"name": "python"}}
  ]
}`

func TestParse(t *testing.T) {
	f, err := Parse("/traces/trace_rank0_step4.json", []byte(sampleTrace))
	require.NoError(t, err)
	require.Len(t, f.Events, 4)

	mm := f.Events[0]
	assert.Equal(t, "aten::mm", mm.Name)
	assert.Equal(t, "cpu_op", mm.Category)
	assert.Equal(t, 100.0, mm.Start)
	assert.Equal(t, 50.0, mm.Duration)
	assert.Equal(t, 2049.0, mm.Arg("External id"))
	assert.True(t, mm.Valid())

	instant := f.Events[2]
	assert.Equal(t, 130.0, instant.Start)
	assert.True(t, math.IsNaN(instant.Duration))
	assert.False(t, instant.Valid())
	assert.False(t, instant.HasFiniteDuration())

	meta := f.Events[3]
	assert.True(t, math.IsNaN(meta.Start))
	assert.Nil(t, meta.Arg("missing"))

	assert.Equal(t, "trace_rank0_step4.json", f.FileName())
	assert.Equal(t, 100.0, f.FirstStart())
}

func TestParse_NoTraceEvents(t *testing.T) {
	f, err := Parse("empty.json", []byte(`{"deviceProperties": []}`))
	require.NoError(t, err)
	assert.NotNil(t, f.Events)
	assert.Empty(t, f.Events)
	assert.Equal(t, 0.0, f.FirstStart())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("bad.json", []byte(`{"traceEvents": [`))
	assert.Error(t, err)
}

func TestEventValid(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"positive duration", Event{Start: 0, Duration: 1}, true},
		{"zero duration", Event{Start: 0, Duration: 0}, false},
		{"negative duration", Event{Start: 0, Duration: -1}, false},
		{"nan start", Event{Start: math.NaN(), Duration: 1}, false},
		{"inf duration", Event{Start: 0, Duration: math.Inf(1)}, false},
		{"nan duration", Event{Start: 0, Duration: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Valid())
		})
	}
}

func TestEventJSONRoundTripKeepsMissingFields(t *testing.T) {
	in := Event{Name: "marker", Start: 5, Duration: math.NaN()}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dur")

	var out Event
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 5.0, out.Start)
	assert.True(t, math.IsNaN(out.Duration))
}

func TestSpan(t *testing.T) {
	events := []Event{
		{Name: "a", Start: 10, Duration: 5},
		{Name: "b", Start: 2, Duration: 3},
		{Name: "instant", Start: 0, Duration: math.NaN()},
		{Name: "zero", Start: 100, Duration: 0},
	}
	minTs, maxTe, ok := Span(events)
	require.True(t, ok)
	assert.Equal(t, 2.0, minTs)
	assert.Equal(t, 15.0, maxTe)

	_, _, ok = Span([]Event{{Start: 1, Duration: math.NaN()}})
	assert.False(t, ok)
}

func TestFilterKeepsInvalidEvents(t *testing.T) {
	events := []Event{
		{Name: "nccl:all_reduce", Start: 0, Duration: 1},
		{Name: "nccl:broadcast", Start: 0, Duration: math.NaN()},
		{Name: "aten::add", Start: 0, Duration: 1},
	}
	got := Filter(events, func(e Event) bool { return e.Name[:4] == "nccl" })
	require.Len(t, got, 2)
	assert.Equal(t, "nccl:broadcast", got[1].Name)

	none := Filter(events, func(Event) bool { return false })
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLoadDir(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/run/trace_rank1_step4.json", []byte(sampleTrace), 0644))
	require.NoError(t, mfs.WriteFile("/run/trace_rank0_step4.json", []byte(`{"traceEvents": []}`), 0644))
	require.NoError(t, mfs.WriteFile("/run/memory_track.json", []byte(`{}`), 0644))
	require.NoError(t, mfs.WriteFile("/run/notes.txt", []byte("x"), 0644))
	require.NoError(t, mfs.WriteFile("/run/config.json", []byte("{}"), 0644))

	files, err := LoadDir(mfs, "/run")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "memory_track.json", files[0].FileName())
	assert.Equal(t, "trace_rank0_step4.json", files[1].FileName())
	assert.Equal(t, "trace_rank1_step4.json", files[2].FileName())
	assert.Len(t, files[2].Events, 4)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(fsutil.NewMemoryFileSystem(), "/missing.json")
	assert.Error(t, err)
}

func TestRankTracePath(t *testing.T) {
	assert.Equal(t, "/run/trace_rank12_step4.json", RankTracePath("/run", 12, 4))
}
