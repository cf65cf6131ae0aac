// Package classify turns declarative event-selection rules into trace
// predicates. Rules are how callers decide what counts as "compute" or
// "communication"; the interval engine never looks at names itself.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/overlap.report/internal/trace"
)

// Rule matches an event when every populated condition holds.
type Rule struct {
	NameContains    []string          `json:"name_contains,omitempty" yaml:"name_contains,omitempty"`
	NameNotContains []string          `json:"name_not_contains,omitempty" yaml:"name_not_contains,omitempty"`
	NamePrefix      string            `json:"name_prefix,omitempty" yaml:"name_prefix,omitempty"`
	NameEquals      string            `json:"name_equals,omitempty" yaml:"name_equals,omitempty"`
	Category        string            `json:"category,omitempty" yaml:"category,omitempty"`
	ArgEquals       map[string]string `json:"arg_equals,omitempty" yaml:"arg_equals,omitempty"`
}

// Group is a named selection: an event belongs to it when any rule matches.
type Group struct {
	Name   string `json:"name" yaml:"name"`
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`
	Rules  []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Presets are the selections used most often against PyTorch profiler
// traces.
var Presets = map[string][]Rule{
	"compute": {
		{NameContains: []string{"aten::"}},
	},
	"comm": {
		{NameContains: []string{"nccl"}, NameNotContains: []string{"nccl_version"}},
	},
	"nccl-kernel": {
		{Category: "kernel", NameContains: []string{"nccl"}, NameNotContains: []string{"nccl_version"}},
	},
	"record-param-comms": {
		{NameContains: []string{"record_param_comms"}},
	},
	"memory": {
		{Category: "cpu_instant_event", NameEquals: "[memory]"},
	},
}

// PresetNames lists the preset keys in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the rule has no conditions.
func (r Rule) Empty() bool {
	return len(r.NameContains) == 0 && len(r.NameNotContains) == 0 &&
		r.NamePrefix == "" && r.NameEquals == "" && r.Category == "" && len(r.ArgEquals) == 0
}

// Match reports whether e satisfies the rule.
func (r Rule) Match(e trace.Event) bool {
	if r.NameEquals != "" && e.Name != r.NameEquals {
		return false
	}
	if r.NamePrefix != "" && !strings.HasPrefix(e.Name, r.NamePrefix) {
		return false
	}
	if r.Category != "" && e.Category != r.Category {
		return false
	}
	for _, s := range r.NameContains {
		if !strings.Contains(e.Name, s) {
			return false
		}
	}
	for _, s := range r.NameNotContains {
		if strings.Contains(e.Name, s) {
			return false
		}
	}
	for key, want := range r.ArgEquals {
		if ArgString(e.Arg(key)) != want {
			return false
		}
	}
	return true
}

// Validate checks the group can be compiled.
func (g Group) Validate() error {
	if g.Preset != "" {
		if _, ok := Presets[g.Preset]; !ok {
			return fmt.Errorf("group %q: unknown preset %q (known: %s)", g.Name, g.Preset, strings.Join(PresetNames(), ", "))
		}
	}
	if g.Preset == "" && len(g.Rules) == 0 {
		return fmt.Errorf("group %q: needs a preset or at least one rule", g.Name)
	}
	for i, r := range g.Rules {
		if r.Empty() {
			return fmt.Errorf("group %q: rule %d has no conditions", g.Name, i)
		}
	}
	return nil
}

// Predicate compiles the group. Preset rules and explicit rules are OR-ed.
func (g Group) Predicate() (trace.Predicate, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	rules := append(append([]Rule(nil), Presets[g.Preset]...), g.Rules...)
	return func(e trace.Event) bool {
		for _, r := range rules {
			if r.Match(e) {
				return true
			}
		}
		return false
	}, nil
}

// Select returns the events of f that belong to g.
func (g Group) Select(f *trace.File) ([]trace.Event, error) {
	pred, err := g.Predicate()
	if err != nil {
		return nil, err
	}
	return f.Filter(pred), nil
}

// PresetGroup builds a group from a preset name.
func PresetGroup(preset string) Group {
	return Group{Name: preset, Preset: preset}
}

// ArgString renders an argument value for comparison. JSON numbers decode
// as float64 and are printed without a trailing ".0" when integral.
func ArgString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

// GroupFromFlag interprets a command-line group: a preset name selects that
// preset, anything else selects events whose name contains it.
func GroupFromFlag(s string) Group {
	if _, ok := Presets[s]; ok {
		return PresetGroup(s)
	}
	return Group{Name: s, Rules: []Rule{{NameContains: []string{s}}}}
}

// NamedGroup selects events whose name is exactly name.
func NamedGroup(name string) Group {
	return Group{Name: name, Rules: []Rule{{NameEquals: name}}}
}
