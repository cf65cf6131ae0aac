package comm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/monitoring"
	"github.com/banshee-data/overlap.report/internal/trace"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

const markerTrace = `{"traceEvents": [
  {"name": "XXXXXXXX: MoeLayer=1&phase=dispatch", "ts": 0, "dur": 100},
  {"name": "XXXXXXXX:MoeLayer=10", "ts": 200, "dur": 100},
  {"name": "XXXXXXXX:MoeLayer=2", "ts": 300, "dur": 50},
  {"name": "XXXXXXXX:MoeLayer=1", "ts": 500, "dur": 10},
  {"name": "hipExtLaunchKernel", "ts": 10, "dur": 5,
   "args": {"kernel": "ncclDevKernel_Generic_4(ncclDevKernelArgsStorage<4096ul>)", "External id": 501}},
  {"name": "hipExtLaunchKernel", "ts": 20, "dur": 5,
   "args": {"kernel": "ncclDevKernel_Generic_4(ncclDevKernelArgsStorage<4096ul>)", "External id": 501}},
  {"name": "hipExtLaunchKernel", "ts": 40, "dur": 5,
   "args": {"kernel": "Cijk_Ailk_Bljk_BBS_BH", "External id": 999}},
  {"name": "hipExtLaunchKernel", "ts": 210, "dur": 5,
   "args": {"kernel": "ncclDevKernel_Generic_4(ncclDevKernelArgsStorage<4096ul>)", "External id": 777}},
  {"cat": "kernel", "name": "ncclDevKernel_Generic_4(ncclDevKernelArgsStorage<4096ul>)", "ts": 30, "dur": 40,
   "args": {"External id": 501}},
  {"cat": "kernel", "name": "ncclDevKernel_Generic_4(ncclDevKernelArgsStorage<4096ul>)", "ts": 220, "dur": 40,
   "args": {"External id": 777}},
  {"cat": "cpu_op", "name": "record_param_comms", "ts": 9, "dur": 1,
   "args": {"External id": 501, "Collective name": "all_to_allv"}}
]}`

func TestCorrelateMarkers(t *testing.T) {
	f, err := trace.Parse("trace_rank0_step4.json", []byte(markerTrace))
	require.NoError(t, err)

	layers, err := CorrelateMarkers(f, DefaultMarkerOptions())
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.Equal(t, "1", layers[0].Layer)
	assert.Equal(t, 0.0, layers[0].Marker.Start, "first marker of a layer wins")
	assert.Equal(t, "501", layers[0].ExternalID)
	require.Len(t, layers[0].Kernels, 1)
	assert.Equal(t, 30.0, layers[0].Kernels[0].Start)
	require.Len(t, layers[0].Params, 1)
	assert.Equal(t, "record_param_comms", layers[0].Params[0].Name)

	assert.Equal(t, "2", layers[1].Layer)
	assert.Equal(t, "", layers[1].ExternalID)
	assert.Empty(t, layers[1].Kernels)
	assert.Empty(t, layers[1].Params)

	assert.Equal(t, "10", layers[2].Layer)
	assert.Equal(t, "777", layers[2].ExternalID)
	require.Len(t, layers[2].Kernels, 1)
	assert.Empty(t, layers[2].Params)
}

func TestCorrelateMarkers_Inconsistent(t *testing.T) {
	f, err := trace.Parse("t.json", []byte(`{"traceEvents": [
	  {"name": "XXXXXXXX:MoeLayer=3", "ts": 0, "dur": 100},
	  {"name": "hipExtLaunchKernel", "ts": 10, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 1}},
	  {"name": "hipExtLaunchKernel", "ts": 20, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 2}}
	]}`))
	require.NoError(t, err)

	_, err = CorrelateMarkers(f, DefaultMarkerOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentCorrelation)
	assert.Contains(t, err.Error(), "layer 3")
}

func TestCorrelateMarkers_LaunchMustBeInsideWindow(t *testing.T) {
	f, err := trace.Parse("t.json", []byte(`{"traceEvents": [
	  {"name": "XXXXXXXX:MoeLayer=0", "ts": 0, "dur": 100},
	  {"name": "hipExtLaunchKernel", "ts": 10, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 1}},
	  {"name": "hipExtLaunchKernel", "ts": 98, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 2}}
	]}`))
	require.NoError(t, err)

	layers, err := CorrelateMarkers(f, DefaultMarkerOptions())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "1", layers[0].ExternalID)
}

func TestCorrelateRanks(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile(trace.RankTracePath("/run", 0, 4), []byte(markerTrace), 0644))
	require.NoError(t, mfs.WriteFile(trace.RankTracePath("/run", 2, 4), []byte(markerTrace), 0644))

	got, err := CorrelateRanks(context.Background(), mfs, "/run", 3, 4, 2, DefaultMarkerOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.Len(t, got[1].Layers, 3)
}

func TestCorrelateRanks_PropagatesFailure(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile(trace.RankTracePath("/run", 0, 4), []byte(markerTrace), 0644))
	require.NoError(t, mfs.WriteFile(trace.RankTracePath("/run", 1, 4), []byte(`{"traceEvents": [
	  {"name": "XXXXXXXX:MoeLayer=3", "ts": 0, "dur": 100},
	  {"name": "hipExtLaunchKernel", "ts": 10, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 1}},
	  {"name": "hipExtLaunchKernel", "ts": 20, "dur": 5, "args": {"kernel": "ncclDevKernel_Generic_4", "External id": 2}}
	]}`), 0644))

	_, err := CorrelateRanks(context.Background(), mfs, "/run", 2, 4, 4, DefaultMarkerOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentCorrelation)
	assert.Contains(t, err.Error(), "rank 1")
}

func TestCorrelateRanks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CorrelateRanks(ctx, fsutil.NewMemoryFileSystem(), "/run", 4, 4, 1, DefaultMarkerOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortLayers_MixedKeys(t *testing.T) {
	want := []string{"2", "9", "10", "1a", "dense", "shared"}
	inputs := [][]string{
		{"10", "9", "1a", "shared", "2", "dense"},
		{"1a", "10", "9", "dense", "shared", "2"},
		{"shared", "dense", "1a", "10", "9", "2"},
	}
	for _, in := range inputs {
		got := append([]string(nil), in...)
		sortLayers(got)
		assert.Equal(t, want, got, "sortLayers(%v)", in)
	}
}

func TestCorrelateMarkers_MixedLayerKeys(t *testing.T) {
	f, err := trace.Parse("mixed.json", []byte(`{"traceEvents": [
  {"ph": "X", "name": "XXXXXXXX:MoeLayer=1a", "ts": 0, "dur": 10},
  {"ph": "X", "name": "XXXXXXXX:MoeLayer=10", "ts": 20, "dur": 10},
  {"ph": "X", "name": "XXXXXXXX:MoeLayer=9", "ts": 40, "dur": 10}
]}`))
	require.NoError(t, err)

	layers, err := CorrelateMarkers(f, DefaultMarkerOptions())
	require.NoError(t, err)

	var got []string
	for _, l := range layers {
		got = append(got, l.Layer)
	}
	assert.Equal(t, []string{"9", "10", "1a"}, got)
}
