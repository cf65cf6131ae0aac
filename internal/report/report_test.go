package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overlap.report/internal/durstats"
	"github.com/banshee-data/overlap.report/internal/interval"
	"github.com/banshee-data/overlap.report/internal/testutil"
	"github.com/banshee-data/overlap.report/internal/trace"
)

func overlapFixture() interval.OverlapResult {
	a := []trace.Event{testutil.Span("aten::mm", 0, 50)}
	b := []trace.Event{testutil.Span("ncclKernel", 25, 50)}
	return interval.ComputeOverlap(append(a, b...), a, b)
}

func TestSummarizeOverlap(t *testing.T) {
	s := SummarizeOverlap("trace_rank0.json", "compute", "comm", overlapFixture())

	assert.Equal(t, "trace_rank0.json", s.Trace)
	assert.InDelta(t, 25.0/75.0, s.Rate, 1e-12)
	assert.Equal(t, 25.0, s.OverlapTotal)
	assert.Equal(t, 75.0, s.TotalSpan)
	assert.InDelta(t, 50.0/75.0, s.CoverageA, 1e-12)
	assert.InDelta(t, 50.0/75.0, s.CoverageB, 1e-12)
	assert.Equal(t, 1, s.SegmentsA)
	assert.Equal(t, 1, s.Intervals)
	assert.Nil(t, s.Result)
}

func TestWriteOverlap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOverlap(&buf, SummarizeOverlap("trace_rank0.json", "compute", "comm", overlapFixture())))

	out := buf.String()
	assert.Contains(t, out, "trace_rank0.json")
	assert.Contains(t, out, "overlap rate")
	assert.Contains(t, out, "33.33%")
	assert.Contains(t, out, "coverage compute")
	assert.Contains(t, out, "75.000 us")
	assert.NotContains(t, out, "no overlap")
}

func TestWriteOverlap_Degenerate(t *testing.T) {
	res := interval.ComputeOverlap(nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteOverlap(&buf, SummarizeOverlap("empty.json", "a", "b", res)))
	assert.Contains(t, buf.String(), "no overlap")
	assert.Contains(t, buf.String(), "0.00%")
}

func TestWriteStats(t *testing.T) {
	st, ok := durstats.FromDurations([]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, StatsSummary{Trace: "t.json", Group: "_AllToAll", Stats: &st}))
	out := buf.String()
	assert.Contains(t, out, "t.json: _AllToAll")
	assert.Contains(t, out, "p50")
	assert.Contains(t, out, "60.000 us")
	assert.Contains(t, out, "100.000 us")

	buf.Reset()
	require.NoError(t, WriteStats(&buf, StatsSummary{Trace: "t.json", Group: "none"}))
	assert.Contains(t, buf.String(), "no matching events")
}

func TestWriteJSON(t *testing.T) {
	res := overlapFixture()
	s := SummarizeOverlap("t.json", "compute", "comm", res)
	s.Result = &res

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, s))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "compute", decoded["group_a"])
	assert.Equal(t, 25.0, decoded["overlap_total"])

	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{[]any{25.0, 50.0}}, result["overlap_intervals"])
}

func TestWriteJSON_AbsentStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, StatsSummary{Trace: "t.json", Group: "g"}))
	assert.JSONEq(t, `{"trace":"t.json","group":"g","stats":null}`, buf.String())
}
