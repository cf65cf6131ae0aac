package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overlap.report/internal/durstats"
	"github.com/banshee-data/overlap.report/internal/monitoring"
	"github.com/banshee-data/overlap.report/internal/report"
	"github.com/banshee-data/overlap.report/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// openTestStore opens a fresh store whose clock advances one second per
// recorded run.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.clock = timeutil.NewSteppingClock(time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC), time.Second)
	return s
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateUp(), "re-running migrations is a no-op")
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.RecordOverlap(context.Background(), report.OverlapSummary{Trace: "t.json", Rate: 0.5})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Overlap.Rate)
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	overlapID, err := s.RecordOverlap(ctx, report.OverlapSummary{
		Trace: "trace_rank0.json", GroupA: "compute", GroupB: "comm",
		Rate: 0.25, OverlapTotal: 25, TotalSpan: 100, SegmentsA: 3,
	})
	require.NoError(t, err)

	st, ok := durstats.FromDurations([]float64{1, 2, 3, 4})
	require.True(t, ok)
	statsID, err := s.RecordStats(ctx, report.StatsSummary{Trace: "trace_rank0.json", Group: "_AllToAll", Stats: &st})
	require.NoError(t, err)

	_, err = s.RecordStats(ctx, report.StatsSummary{Trace: "trace_rank1.json", Group: "none"})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "trace_rank1.json", runs[0].Trace, "newest first")
	assert.Nil(t, runs[0].Stats.Stats)

	assert.Equal(t, statsID, runs[1].ID)
	assert.Equal(t, KindStats, runs[1].Kind)
	assert.Equal(t, "_AllToAll", runs[1].GroupA)
	require.NotNil(t, runs[1].Stats.Stats)
	assert.Equal(t, st, *runs[1].Stats.Stats)

	assert.Equal(t, overlapID, runs[2].ID)
	assert.Equal(t, KindOverlap, runs[2].Kind)
	assert.Equal(t, "comm", runs[2].GroupB)
	assert.Equal(t, 0.25, runs[2].Overlap.Rate)
	assert.Equal(t, 3, runs[2].Overlap.SegmentsA)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC), runs[2].CreatedAt)
}

func TestListRuns_Filters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, tr := range []string{"a.json", "b.json", "a.json"} {
		_, err := s.RecordOverlap(ctx, report.OverlapSummary{Trace: tr})
		require.NoError(t, err)
	}
	_, err := s.RecordStats(ctx, report.StatsSummary{Trace: "a.json", Group: "g"})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, ListOptions{Kind: KindOverlap})
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = s.ListRuns(ctx, ListOptions{Trace: "a.json"})
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = s.ListRuns(ctx, ListOptions{Trace: "a.json", Kind: KindOverlap, Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 3, 0, time.UTC), runs[0].CreatedAt)

	runs, err = s.ListRuns(ctx, ListOptions{Trace: "missing.json"})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRecordOverlap_DropsDetail(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.RecordOverlap(ctx, report.OverlapSummary{Trace: "t.json", Result: nil})
	require.NoError(t, err)

	r, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r.Overlap.Result)
	assert.Nil(t, r.Stats)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
