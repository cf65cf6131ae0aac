// Package comm reports on collective-communication records in profiler
// traces: per-call TSV rows with sizes and bandwidth, and correlation of
// MoE layer markers with the NCCL kernels they launched.
package comm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/trace"
)

// ErrUnknownDType is returned when a collective names a dtype with no known
// element size.
var ErrUnknownDType = errors.New("unknown dtype size")

// DTypeSizes maps profiler dtype names to element sizes in bytes.
var DTypeSizes = map[string]int{
	"Float":    4,
	"BFloat16": 2,
	"Half":     2,
	"Double":   8,
	"Int":      4,
	"Long":     8,
	"Byte":     1,
	"Bool":     1,
}

// Argument keys written by record_param_comms.
const (
	argDType        = "dtype"
	argInElems      = "In msg nelems"
	argOutElems     = "Out msg nelems"
	argEvIdx        = "Ev Idx"
	argExternalID   = "External id"
	argGroupRanks   = "Process Group Ranks"
	argGroupSize    = "Group size"
	argGroupName    = "Process Group Name"
	argGroupDesc    = "Process Group Description"
	argRank         = "Rank"
	argCollective   = "Collective name"
	recordParamName = "record_param_comms"
)

// TSVHeader lists the columns written by WriteTSV.
var TSVHeader = []string{
	"timestamp", "ts_rel", "rank", "collective", "dtype",
	"in_elems", "out_elems", "bytes_in", "bytes_out", "in_MB", "out_MB",
	"dur_us", "bandwidth_in_MBps", "bandwidth_out_MBps",
	"op_id", "pair_op_id", "group_ranks", "group_size", "process_group",
}

// Collective is one record_param_comms call.
type Collective struct {
	Timestamp    float64
	RelTimestamp float64
	Rank         string
	Name         string
	DType        string
	InElems      float64
	OutElems     float64
	BytesIn      float64
	BytesOut     float64
	Duration     float64
	OpID         string
	PairOpID     string
	GroupRanks   string
	GroupSize    string
	ProcessGroup string
}

// BandwidthIn returns input MB/s, ok false when the duration is zero.
func (c Collective) BandwidthIn() (float64, bool) {
	return bandwidth(c.BytesIn, c.Duration)
}

// BandwidthOut returns output MB/s, ok false when the duration is zero.
func (c Collective) BandwidthOut() (float64, bool) {
	return bandwidth(c.BytesOut, c.Duration)
}

func bandwidth(bytes, durUs float64) (float64, bool) {
	if durUs == 0 {
		return 0, false
	}
	return bytes / (durUs / 1e6) / 1e6, true
}

// CollectiveFilter restricts which collectives are reported.
type CollectiveFilter struct {
	// ProcessGroup, when set, must equal the group's description or name.
	ProcessGroup string
}

var collectiveRule = classify.Rule{NameContains: []string{recordParamName}}

func (f CollectiveFilter) match(e trace.Event) bool {
	if !collectiveRule.Match(e) {
		return false
	}
	if f.ProcessGroup == "" {
		return true
	}
	return classify.ArgString(e.Arg(argGroupDesc)) == f.ProcessGroup ||
		classify.ArgString(e.Arg(argGroupName)) == f.ProcessGroup
}

// ExtractCollectives builds one row per matching collective in file order.
// Timestamps are made relative to the first event of the trace.
func ExtractCollectives(f *trace.File, filter CollectiveFilter) ([]Collective, error) {
	t0 := f.FirstStart()

	var rows []Collective
	for _, e := range f.Filter(filter.match) {
		c, err := newCollective(e, t0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, c)
	}
	return rows, nil
}

func newCollective(e trace.Event, t0 float64) (Collective, error) {
	ts := orZero(e.Start)
	dtype := classify.ArgString(e.Arg(argDType))
	if dtype == "" {
		dtype = "Float"
	}
	size, ok := DTypeSizes[dtype]
	if !ok {
		return Collective{}, fmt.Errorf("%w for %s", ErrUnknownDType, dtype)
	}

	in := numberArg(e.Arg(argInElems))
	out := numberArg(e.Arg(argOutElems))

	opID := e.Arg(argEvIdx)
	if opID == nil {
		opID = e.Arg(argExternalID)
	}
	pg := e.Arg(argGroupName)
	if pg == nil {
		pg = e.Arg(argGroupDesc)
	}

	ranks := e.Arg(argGroupRanks)
	if ranks == nil {
		ranks = []any{}
	}
	ranksJSON, err := json.Marshal(ranks)
	if err != nil {
		return Collective{}, fmt.Errorf("failed to encode group ranks: %w", err)
	}

	return Collective{
		Timestamp:    ts,
		RelTimestamp: ts - t0,
		Rank:         classify.ArgString(e.Arg(argRank)),
		Name:         classify.ArgString(e.Arg(argCollective)),
		DType:        dtype,
		InElems:      in,
		OutElems:     out,
		BytesIn:      in * float64(size),
		BytesOut:     out * float64(size),
		Duration:     orZero(e.Duration),
		OpID:         classify.ArgString(opID),
		GroupRanks:   string(ranksJSON),
		GroupSize:    classify.ArgString(e.Arg(argGroupSize)),
		ProcessGroup: classify.ArgString(pg),
	}, nil
}

// Fields renders the row in TSVHeader order.
func (c Collective) Fields() []string {
	bwIn, bwOut := "", ""
	if v, ok := c.BandwidthIn(); ok {
		bwIn = fixed(v, 2)
	}
	if v, ok := c.BandwidthOut(); ok {
		bwOut = fixed(v, 2)
	}
	return []string{
		fixed(c.Timestamp, 3),
		fixed(c.RelTimestamp, 3),
		c.Rank,
		c.Name,
		c.DType,
		number(c.InElems),
		number(c.OutElems),
		number(c.BytesIn),
		number(c.BytesOut),
		fixed(c.BytesIn/1e6, 2),
		fixed(c.BytesOut/1e6, 2),
		number(c.Duration),
		bwIn,
		bwOut,
		c.OpID,
		c.PairOpID,
		c.GroupRanks,
		c.GroupSize,
		c.ProcessGroup,
	}
}

// WriteTSV writes the header and one line per collective.
func WriteTSV(w io.Writer, rows []Collective) error {
	if _, err := io.WriteString(w, strings.Join(TSVHeader, "\t")+"\n"); err != nil {
		return err
	}
	for _, c := range rows {
		if _, err := io.WriteString(w, strings.Join(c.Fields(), "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func numberArg(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return 0
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
