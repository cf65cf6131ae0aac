// Package trace holds the event model for profiler traces and the loader
// for Chrome trace-event JSON files written by the PyTorch profiler.
package trace

import (
	"encoding/json"
	"math"
)

// Event is a single timed record from a trace. Start and Duration share the
// unit of the trace (microseconds for PyTorch profiler output). A record with
// no "ts" or "dur" carries NaN in the corresponding field.
type Event struct {
	Phase    string         `json:"ph,omitempty"`
	Category string         `json:"cat,omitempty"`
	Name     string         `json:"name"`
	PID      any            `json:"pid,omitempty"`
	TID      any            `json:"tid,omitempty"`
	Start    float64        `json:"ts"`
	Duration float64        `json:"dur"`
	Args     map[string]any `json:"args,omitempty"`
}

// Valid reports whether the event can take part in interval math: a finite
// start and a finite, strictly positive duration.
func (e Event) Valid() bool {
	return isFinite(e.Start) && isFinite(e.Duration) && e.Duration > 0
}

// HasFiniteDuration reports whether the duration is usable as a sample.
func (e Event) HasFiniteDuration() bool {
	return isFinite(e.Duration)
}

// End returns Start + Duration. Only meaningful when Valid.
func (e Event) End() float64 {
	return e.Start + e.Duration
}

// Arg returns the named argument, or nil when absent.
func (e Event) Arg(key string) any {
	if e.Args == nil {
		return nil
	}
	return e.Args[key]
}

// UnmarshalJSON decodes a trace record, mapping a missing or null ts/dur to NaN.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Phase    string         `json:"ph"`
		Category string         `json:"cat"`
		Name     string         `json:"name"`
		PID      any            `json:"pid"`
		TID      any            `json:"tid"`
		Start    *float64       `json:"ts"`
		Duration *float64       `json:"dur"`
		Args     map[string]any `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Event{
		Phase:    raw.Phase,
		Category: raw.Category,
		Name:     raw.Name,
		PID:      raw.PID,
		TID:      raw.TID,
		Start:    math.NaN(),
		Duration: math.NaN(),
		Args:     raw.Args,
	}
	if raw.Start != nil {
		e.Start = *raw.Start
	}
	if raw.Duration != nil {
		e.Duration = *raw.Duration
	}
	return nil
}

// MarshalJSON writes NaN fields as absent so output round-trips through
// UnmarshalJSON.
func (e Event) MarshalJSON() ([]byte, error) {
	out := struct {
		Phase    string         `json:"ph,omitempty"`
		Category string         `json:"cat,omitempty"`
		Name     string         `json:"name"`
		PID      any            `json:"pid,omitempty"`
		TID      any            `json:"tid,omitempty"`
		Start    *float64       `json:"ts,omitempty"`
		Duration *float64       `json:"dur,omitempty"`
		Args     map[string]any `json:"args,omitempty"`
	}{
		Phase:    e.Phase,
		Category: e.Category,
		Name:     e.Name,
		PID:      e.PID,
		TID:      e.TID,
		Args:     e.Args,
	}
	if isFinite(e.Start) {
		s := e.Start
		out.Start = &s
	}
	if isFinite(e.Duration) {
		d := e.Duration
		out.Duration = &d
	}
	return json.Marshal(out)
}

// Predicate selects events. Classification of events lives with the caller.
type Predicate func(Event) bool

// Filter returns the events satisfying pred, in input order. Invalid events
// are not removed.
func Filter(events []Event, pred Predicate) []Event {
	out := make([]Event, 0)
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Span returns the earliest start and latest end over all valid events.
// ok is false when no valid event exists.
func Span(events []Event) (minTs, maxTe float64, ok bool) {
	minTs = math.Inf(1)
	maxTe = math.Inf(-1)
	for _, e := range events {
		if !e.Valid() {
			continue
		}
		if e.Start < minTs {
			minTs = e.Start
		}
		if end := e.End(); end > maxTe {
			maxTe = end
		}
		ok = true
	}
	return minTs, maxTe, ok
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
