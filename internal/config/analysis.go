package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/fsutil"
)

// AnalysisConfig is the on-disk description of an analysis run. Every field
// is optional; command-line flags override what is set here and the Get*
// methods supply defaults for the rest.
type AnalysisConfig struct {
	// Inputs
	Traces   []string `json:"traces,omitempty" yaml:"traces,omitempty"`
	TraceDir *string  `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`

	// Event groups compared by the overlap command
	GroupA *classify.Group `json:"group_a,omitempty" yaml:"group_a,omitempty"`
	GroupB *classify.Group `json:"group_b,omitempty" yaml:"group_b,omitempty"`

	// Chart options
	Title         *string `json:"title,omitempty" yaml:"title,omitempty"`
	NormalizeTime *bool   `json:"normalize_time,omitempty" yaml:"normalize_time,omitempty"`
	HistogramBins *int    `json:"histogram_bins,omitempty" yaml:"histogram_bins,omitempty"`

	// Outputs
	OutputDir *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	DBPath    *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// Communication reports
	ProcessGroup *string `json:"process_group,omitempty" yaml:"process_group,omitempty"`
	MarkerPrefix *string `json:"marker_prefix,omitempty" yaml:"marker_prefix,omitempty"`
	Ranks        *int    `json:"ranks,omitempty" yaml:"ranks,omitempty"`
	Step         *int    `json:"step,omitempty" yaml:"step,omitempty"`
}

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// LoadAnalysisConfig loads an AnalysisConfig from a .json, .yaml or .yml file.
func LoadAnalysisConfig(fsys fsutil.FileSystem, path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if len(c.Traces) > 0 && c.TraceDir != nil && *c.TraceDir != "" {
		return fmt.Errorf("traces and trace_dir are mutually exclusive")
	}
	if c.GroupA != nil {
		if err := c.GroupA.Validate(); err != nil {
			return fmt.Errorf("group_a: %w", err)
		}
	}
	if c.GroupB != nil {
		if err := c.GroupB.Validate(); err != nil {
			return fmt.Errorf("group_b: %w", err)
		}
	}
	if c.HistogramBins != nil && *c.HistogramBins < 1 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	if c.Ranks != nil && *c.Ranks < 1 {
		return fmt.Errorf("ranks must be positive, got %d", *c.Ranks)
	}
	if c.Step != nil && *c.Step < 0 {
		return fmt.Errorf("step must be non-negative, got %d", *c.Step)
	}
	return nil
}

// GetGroupA returns group A, defaulting to the compute preset.
func (c *AnalysisConfig) GetGroupA() classify.Group {
	if c.GroupA == nil {
		return classify.PresetGroup("compute")
	}
	return *c.GroupA
}

// GetGroupB returns group B, defaulting to the comm preset.
func (c *AnalysisConfig) GetGroupB() classify.Group {
	if c.GroupB == nil {
		return classify.PresetGroup("comm")
	}
	return *c.GroupB
}

// GetTitle returns the chart title or the default.
func (c *AnalysisConfig) GetTitle() string {
	if c.Title == nil || *c.Title == "" {
		return "Profile"
	}
	return *c.Title
}

// GetNormalizeTime returns whether chart time axes start at zero.
func (c *AnalysisConfig) GetNormalizeTime() bool {
	if c.NormalizeTime == nil {
		return true
	}
	return *c.NormalizeTime
}

// GetHistogramBins returns the histogram bin count or the default.
func (c *AnalysisConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 50
	}
	return *c.HistogramBins
}

// GetOutputDir returns the output directory or the default.
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "output"
	}
	return *c.OutputDir
}

// GetDBPath returns the run-history database path, empty when disabled.
func (c *AnalysisConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetTraceDir returns the trace directory, empty when unset.
func (c *AnalysisConfig) GetTraceDir() string {
	if c.TraceDir == nil {
		return ""
	}
	return *c.TraceDir
}

// GetProcessGroup returns the process group filter, empty for all groups.
func (c *AnalysisConfig) GetProcessGroup() string {
	if c.ProcessGroup == nil {
		return ""
	}
	return *c.ProcessGroup
}

// GetMarkerPrefix returns the MoE marker prefix or the default.
func (c *AnalysisConfig) GetMarkerPrefix() string {
	if c.MarkerPrefix == nil || *c.MarkerPrefix == "" {
		return "XXXXXXXX:"
	}
	return *c.MarkerPrefix
}

// GetRanks returns the number of ranks to scan or the default.
func (c *AnalysisConfig) GetRanks() int {
	if c.Ranks == nil {
		return 8
	}
	return *c.Ranks
}

// GetStep returns the profiled step number or the default.
func (c *AnalysisConfig) GetStep() int {
	if c.Step == nil {
		return 4
	}
	return *c.Step
}
