package trace

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/monitoring"
)

// File is one loaded trace (typically one rank of one profiled step).
type File struct {
	Path   string
	Events []Event
}

type traceDocument struct {
	TraceEvents []Event `json:"traceEvents"`
}

// Load reads a Chrome trace-event JSON document. A document without a
// "traceEvents" array yields a File with no events.
func Load(fsys fsutil.FileSystem, path string) (*File, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes a trace document already held in memory.
func Parse(path string, data []byte) (*File, error) {
	var doc traceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}
	if doc.TraceEvents == nil {
		doc.TraceEvents = []Event{}
	}
	return &File{Path: path, Events: doc.TraceEvents}, nil
}

// IsTraceFileName reports whether name looks like a profiler trace dump.
func IsTraceFileName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	return strings.Contains(name, "trace") || strings.Contains(name, "track")
}

// LoadDir loads every trace file in dir, in name order.
func LoadDir(fsys fsutil.FileSystem, dir string) ([]*File, error) {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list trace directory %s: %w", dir, err)
	}

	var files []*File
	for _, name := range names {
		if !IsTraceFileName(name) {
			continue
		}
		f, err := Load(fsys, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		monitoring.Logf("loaded %s: %d events", name, len(f.Events))
		files = append(files, f)
	}
	return files, nil
}

// RankTracePath returns the conventional per-rank dump name inside dir.
func RankTracePath(dir string, rank, step int) string {
	return filepath.Join(dir, fmt.Sprintf("trace_rank%d_step%d.json", rank, step))
}

// FileName returns the base name of the trace, used as a row label.
func (f *File) FileName() string {
	if f.Path == "" {
		return "Unknown"
	}
	return filepath.Base(f.Path)
}

// Filter returns the events of f matching pred.
func (f *File) Filter(pred Predicate) []Event {
	return Filter(f.Events, pred)
}

// Span returns the observation window of the whole trace.
func (f *File) Span() (minTs, maxTe float64, ok bool) {
	return Span(f.Events)
}

// FirstStart returns the start of the first event in file order, or 0 when
// the trace is empty or that start is missing.
func (f *File) FirstStart() float64 {
	if len(f.Events) == 0 || !isFinite(f.Events[0].Start) {
		return 0
	}
	return f.Events[0].Start
}
