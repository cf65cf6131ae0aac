package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/config"
	"github.com/banshee-data/overlap.report/internal/monitoring"
	"github.com/banshee-data/overlap.report/internal/runstore"
	"github.com/banshee-data/overlap.report/internal/security"
	"github.com/banshee-data/overlap.report/internal/trace"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// commonFlags are shared by the commands that read traces.
type commonFlags struct {
	fs      *flag.FlagSet
	config  string
	traces  stringList
	dir     string
	out     string
	db      string
	json    bool
	verbose bool
}

func (a *app) newFlagSet(name string) *commonFlags {
	c := &commonFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(a.stderr)
	c.fs.StringVar(&c.config, "config", "", "Analysis config file (.json, .yaml, .yml)")
	c.fs.Var(&c.traces, "trace", "Trace file (repeatable)")
	c.fs.StringVar(&c.dir, "dir", "", "Directory of trace files")
	c.fs.StringVar(&c.out, "out", "", "Output directory (default: output)")
	c.fs.StringVar(&c.db, "db", "", "Record results in this sqlite run history")
	c.fs.BoolVar(&c.json, "json", false, "Print JSON instead of a text summary")
	c.fs.BoolVar(&c.verbose, "verbose", false, "Enable debug logging")
	return c
}

// parse parses args and loads the config file, applying flag overrides.
func (c *commonFlags) parse(a *app, args []string) (*config.AnalysisConfig, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, err
	}
	monitoring.SetVerbose(c.verbose)

	cfg := &config.AnalysisConfig{}
	if c.config != "" {
		loaded, err := config.LoadAnalysisConfig(a.fsys, c.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := c.setFlags()
	if set["trace"] {
		cfg.Traces = c.traces
		cfg.TraceDir = nil
	}
	if set["dir"] {
		cfg.TraceDir = &c.dir
		cfg.Traces = nil
	}
	if set["out"] {
		cfg.OutputDir = &c.out
	}
	if set["db"] {
		cfg.DBPath = &c.db
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *commonFlags) setFlags() map[string]bool {
	set := make(map[string]bool)
	c.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (c *commonFlags) isSet(name string) bool {
	return c.setFlags()[name]
}

var errNoTraces = errors.New("no traces given: use --trace, --dir or a config file")

// loadTraces loads the explicit trace list, or every trace in the trace
// directory.
func (a *app) loadTraces(cfg *config.AnalysisConfig) ([]*trace.File, error) {
	if len(cfg.Traces) > 0 {
		files := make([]*trace.File, 0, len(cfg.Traces))
		for _, path := range cfg.Traces {
			f, err := trace.Load(a.fsys, path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		return files, nil
	}
	if dir := cfg.GetTraceDir(); dir != "" {
		files, err := trace.LoadDir(a.fsys, dir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no trace files in %s", dir)
		}
		return files, nil
	}
	return nil, errNoTraces
}

// outputPathIn names a file in the output directory.
func outputPathIn(outDir, name string) (string, error) {
	return security.OutputPath(outDir, name)
}

// openStore opens the run history when one is configured. The returned
// store is nil otherwise.
func openStore(cfg *config.AnalysisConfig) (*runstore.Store, error) {
	path := cfg.GetDBPath()
	if path == "" {
		return nil, nil
	}
	return runstore.Open(path)
}

func presetList() string {
	return strings.Join(classify.PresetNames(), ", ")
}
