package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/trace"
)

func TestWriteTrace_LoadsBack(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	WriteTrace(t, fsys, "/run/trace_rank0.json",
		Span("aten::mm", 10, 5),
		Kernel("ncclKernel_AllReduce", 12, 4, 501),
		Memory(20, 1, 4),
	)

	f, err := trace.Load(fsys, "/run/trace_rank0.json")
	require.NoError(t, err)
	require.Len(t, f.Events, 3)

	assert.Equal(t, "aten::mm", f.Events[0].Name)
	assert.True(t, f.Events[0].Valid())
	assert.Equal(t, "kernel", f.Events[1].Category)
	assert.Equal(t, 501.0, f.Events[1].Arg("External id"))
	assert.True(t, math.IsNaN(f.Events[2].Duration))
	assert.False(t, f.Events[2].Valid())
}

func TestTraceJSON_Empty(t *testing.T) {
	assert.JSONEq(t, `{"traceEvents":[]}`, string(TraceJSON(t)))
}
