// Package runstore keeps a sqlite history of analysis runs so results from
// different traces, or the same trace before and after a change, can be
// compared later.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/overlap.report/internal/monitoring"
	"github.com/banshee-data/overlap.report/internal/report"
	"github.com/banshee-data/overlap.report/internal/timeutil"
)

// Run kinds.
const (
	KindOverlap = "overlap"
	KindStats   = "stats"
)

// ErrNotFound is returned when a run id is not in the store.
var ErrNotFound = errors.New("run not found")

// Store is a run history backed by a sqlite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure run store: %w", err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Debugf("opened run store %s", path)
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded analysis. Exactly one of Overlap and Stats is set,
// according to Kind.
type Run struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Trace     string                 `json:"trace"`
	GroupA    string                 `json:"group_a,omitempty"`
	GroupB    string                 `json:"group_b,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Overlap   *report.OverlapSummary `json:"overlap,omitempty"`
	Stats     *report.StatsSummary   `json:"stats,omitempty"`
}

// RecordOverlap stores an overlap summary and returns its run id. The
// interval detail is not persisted.
func (s *Store) RecordOverlap(ctx context.Context, sum report.OverlapSummary) (string, error) {
	sum.Result = nil
	return s.insert(ctx, KindOverlap, sum.Trace, sum.GroupA, sum.GroupB, sum, sql.NullFloat64{Float64: sum.Rate, Valid: true}, sql.NullFloat64{}, sql.NullFloat64{})
}

// RecordStats stores a duration summary and returns its run id.
func (s *Store) RecordStats(ctx context.Context, sum report.StatsSummary) (string, error) {
	var p50, p95 sql.NullFloat64
	if sum.Stats != nil {
		p50 = sql.NullFloat64{Float64: sum.Stats.P50, Valid: true}
		p95 = sql.NullFloat64{Float64: sum.Stats.P95, Valid: true}
	}
	return s.insert(ctx, KindStats, sum.Trace, sum.Group, "", sum, sql.NullFloat64{}, p50, p95)
}

func (s *Store) insert(ctx context.Context, kind, trace, groupA, groupB string, summary any, rate, p50, p95 sql.NullFloat64) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s summary: %w", kind, err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, trace, group_a, group_b, created_at, summary_json, rate, p50, p95)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, trace, groupA, groupB, s.clock.Now().UnixNano(), string(data), rate, p50, p95)
	if err != nil {
		return "", fmt.Errorf("failed to record %s run: %w", kind, err)
	}
	return id, nil
}

// ListOptions filters ListRuns.
type ListOptions struct {
	// Kind restricts results to one run kind when set.
	Kind string
	// Trace restricts results to one trace when set.
	Trace string
	// Limit caps the number of runs returned; 0 means no limit.
	Limit int
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context, o ListOptions) ([]Run, error) {
	query := `SELECT run_id, kind, trace, group_a, group_b, created_at, summary_json FROM runs WHERE 1 = 1`
	var args []any
	if o.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, o.Kind)
	}
	if o.Trace != "" {
		query += ` AND trace = ?`
		args = append(args, o.Trace)
	}
	query += ` ORDER BY created_at DESC, run_id`
	if o.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, o.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, trace, group_a, group_b, created_at, summary_json
		FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		created int64
		summary string
	)
	if err := sc.Scan(&r.ID, &r.Kind, &r.Trace, &r.GroupA, &r.GroupB, &created, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to read run: %w", err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()

	switch r.Kind {
	case KindOverlap:
		r.Overlap = &report.OverlapSummary{}
		if err := json.Unmarshal([]byte(summary), r.Overlap); err != nil {
			return Run{}, fmt.Errorf("failed to decode run %s: %w", r.ID, err)
		}
	case KindStats:
		r.Stats = &report.StatsSummary{}
		if err := json.Unmarshal([]byte(summary), r.Stats); err != nil {
			return Run{}, fmt.Errorf("failed to decode run %s: %w", r.ID, err)
		}
	}
	return r, nil
}
