// Command overlap analyses PyTorch profiler traces: how much compute and
// communication overlap, how event durations are distributed, and what the
// collective-communication calls in a run looked like.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/version"
)

// app carries what every command needs from the outside world.
type app struct {
	fsys   fsutil.FileSystem
	stdout io.Writer
	stderr io.Writer
}

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{fsys: fsutil.OSFileSystem{}, stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "overlap":
		return a.cmdOverlap(ctx, args)
	case "stats":
		return a.cmdStats(ctx, args)
	case "comm":
		return a.cmdComm(args)
	case "multitrack":
		return a.cmdMultiTrack(args)
	case "moe":
		return a.cmdMoE(ctx, args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "version":
		fmt.Fprintln(a.stdout, version.String())
		return nil
	case "help":
		printUsage(a.stdout)
		return nil
	default:
		printUsage(a.stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `overlap - profiler trace analysis for distributed training

Usage: overlap <command> [options]

Commands:
  overlap     Measure how much two event groups overlap in time
  stats       Duration percentiles for a selection of events
  comm        Tabulate record_param_comms collectives as TSV
  multitrack  Line up communication kernels of several traces
  moe         Correlate MoE layer markers with their NCCL kernels per rank
  history     List recorded overlap and stats runs
  version     Show version information
  help        Show this help message

Common Flags:
  --config <file>   Analysis config (.json, .yaml, .yml); flags override it
  --trace <file>    Trace file (repeatable)
  --dir <dir>       Load every *trace*.json / *track*.json in dir
  --out <dir>       Output directory for charts and tables (default: output)
  --db <file>       Record results in this sqlite run history
  --json            Print JSON instead of a text summary

Groups:
  -a / -b / --group accept a preset (` + presetList() + `)
  or a substring that event names must contain.

Examples:
  # Compute vs communication overlap with an HTML timeline
  overlap overlap --trace trace_rank0_step4.json -a compute -b comm

  # Duration percentiles of one op, with a histogram
  overlap stats --trace trace_rank4_step4.json --name _AllToAll --png

  # Collectives of one process group as TSV
  overlap comm --trace trace_rank0_step4.json --pg TENSOR_MODEL_PARALLEL_GROUP

  # MoE dispatch correlation across 8 ranks of step 4
  overlap moe --dir ./profiles --ranks 8 --step 4`)
}
