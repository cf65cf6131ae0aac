package comm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/monitoring"
	"github.com/banshee-data/overlap.report/internal/trace"
)

// ErrInconsistentCorrelation is returned when the kernel launches inside one
// marker window do not share a single External id.
var ErrInconsistentCorrelation = errors.New("launches in marker window carry different External ids")

// MarkerOptions describes how layer markers and their kernels are found.
type MarkerOptions struct {
	// Prefix starts every marker name; the rest is a URL query string.
	Prefix string
	// LayerKey is the query parameter naming the layer.
	LayerKey string
	// LaunchName matches host-side launch events.
	LaunchName string
	// KernelName matches the device kernel, both in launch args and on the
	// kernel event itself.
	KernelName string
}

// DefaultMarkerOptions matches MoE dispatch markers on ROCm traces.
func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptions{
		Prefix:     "XXXXXXXX:",
		LayerKey:   "MoeLayer",
		LaunchName: "hipExtLaunchKernel",
		KernelName: "ncclDevKernel_Generic_4",
	}
}

// LayerComm ties one layer marker to the communication it issued.
type LayerComm struct {
	Layer      string        `json:"layer"`
	Marker     trace.Event   `json:"marker"`
	ExternalID string        `json:"external_id,omitempty"`
	Kernels    []trace.Event `json:"kernels"`
	Params     []trace.Event `json:"params"`
}

// CorrelateMarkers finds the first marker of every layer, the single
// External id of the launches inside its window, and the kernels and
// record_param_comms events carrying that id. Layers are returned in
// numeric order when the layer keys are integers.
func CorrelateMarkers(f *trace.File, opts MarkerOptions) ([]LayerComm, error) {
	layers := make(map[string]*LayerComm)
	var order []string
	for _, e := range f.Filter(func(e trace.Event) bool { return strings.HasPrefix(e.Name, opts.Prefix) }) {
		query, err := url.ParseQuery(strings.TrimSpace(strings.TrimPrefix(e.Name, opts.Prefix)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse marker %q: %w", e.Name, err)
		}
		layer := query.Get(opts.LayerKey)
		if _, seen := layers[layer]; seen {
			continue
		}
		layers[layer] = &LayerComm{Layer: layer, Marker: e}
		order = append(order, layer)
	}

	launchRule := classify.Rule{NameContains: []string{opts.LaunchName}}
	kernelRule := classify.Rule{Category: "kernel", NameContains: []string{opts.KernelName}}
	launches := f.Filter(func(e trace.Event) bool {
		return launchRule.Match(e) && strings.Contains(classify.ArgString(e.Arg("kernel")), opts.KernelName)
	})
	kernels := f.Filter(kernelRule.Match)
	params := f.Filter(collectiveRule.Match)

	sortLayers(order)
	out := make([]LayerComm, 0, len(order))
	for _, layer := range order {
		lc := layers[layer]
		winStart := orZero(lc.Marker.Start)
		winEnd := winStart + orZero(lc.Marker.Duration)

		var ids []string
		for _, l := range launches {
			st := orZero(l.Start)
			if st >= winStart && st+orZero(l.Duration) <= winEnd {
				ids = append(ids, classify.ArgString(l.Arg(argExternalID)))
			}
		}
		id, err := uniqueID(ids)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer, err)
		}

		lc.ExternalID = id
		lc.Kernels = withExternalID(kernels, id)
		lc.Params = withExternalID(params, id)
		out = append(out, *lc)
	}
	return out, nil
}

func uniqueID(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			return "", fmt.Errorf("%w: %s and %s", ErrInconsistentCorrelation, ids[0], id)
		}
	}
	return ids[0], nil
}

func withExternalID(events []trace.Event, id string) []trace.Event {
	out := make([]trace.Event, 0)
	if id == "" {
		return out
	}
	for _, e := range events {
		if classify.ArgString(e.Arg(argExternalID)) == id {
			out = append(out, e)
		}
	}
	return out
}

// sortLayers orders integer layer keys numerically, ahead of all other keys,
// which sort lexically.
func sortLayers(layers []string) {
	slices.SortStableFunc(layers, compareLayers)
}

func compareLayers(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// RankComm is the correlation for one rank's trace.
type RankComm struct {
	Rank   int         `json:"rank"`
	Path   string      `json:"path"`
	Layers []LayerComm `json:"layers"`
}

// CorrelateRanks runs CorrelateMarkers over trace_rank{N}_step{step}.json
// for ranks 0..ranks-1 in dir, using up to workers goroutines. Missing rank
// files are skipped with a warning. The first failure cancels the rest.
func CorrelateRanks(ctx context.Context, fsys fsutil.FileSystem, dir string, ranks, step, workers int, opts MarkerOptions) ([]RankComm, error) {
	if workers < 1 {
		workers = 1
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*RankComm, ranks)
	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rank := range jobs {
				path := trace.RankTracePath(dir, rank, step)
				if !fsys.Exists(path) {
					monitoring.Logf("trace for rank %d does not exist: %s", rank, path)
					continue
				}
				f, err := trace.Load(fsys, path)
				if err != nil {
					fail(err)
					continue
				}
				layers, err := CorrelateMarkers(f, opts)
				if err != nil {
					fail(fmt.Errorf("rank %d: %w", rank, err))
					continue
				}
				results[rank] = &RankComm{Rank: rank, Path: path, Layers: layers}
				monitoring.Debugf("correlated %d layers for rank %d", len(layers), rank)
			}
		}()
	}

feed:
	for rank := 0; rank < ranks; rank++ {
		select {
		case jobs <- rank:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	out := make([]RankComm, 0, ranks)
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}
