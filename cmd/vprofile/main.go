// Command vprofile replays a recorded line-delimited JSON event log
// through vprof and writes the resulting function/context statistics in
// one of three formats (spec.md §6). It stands in for embedding vprof
// directly in a host language runtime: the event log is what a live
// instrumentation hook would otherwise feed the profiler event by event.
package main

import (
	"fmt"
	"os"

	"github.com/viroprof/vprof"
	"github.com/viroprof/vprof/internal/config"
	"github.com/viroprof/vprof/internal/eventlog"
	"github.com/viroprof/vprof/internal/vclock"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, "vprofile:", err)
		return 2
	}

	reader, f, err := eventlog.OpenFile(cfg.EventLog())
	if err != nil {
		fmt.Fprintln(stderr, "vprofile: open event log:", err)
		return 1
	}
	defer f.Close()

	prof := vprof.New(cfg.ClockMode, 0)
	clock := vclock.NewManual(1e9)
	prof.SetClock(clock)
	if err := prof.Start(cfg.Builtins, cfg.MultiContext); err != nil {
		fmt.Fprintln(stderr, "vprofile: start:", err)
		return 1
	}

	if err := replay(prof, clock, reader); err != nil {
		fmt.Fprintln(stderr, "vprofile: replay:", err)
		return 1
	}
	prof.Stop()

	out := stdout
	var outFile *os.File
	if cfg.OutputPath != "" {
		of, err := os.Create(cfg.OutputPath)
		if err != nil {
			fmt.Fprintln(stderr, "vprofile: create output:", err)
			return 1
		}
		outFile = of
		defer outFile.Close()
	}
	dest := out
	if outFile != nil {
		dest = outFile
	}

	if err := prof.WriteStats(dest, cfg.OutputFormat, "vprofile"); err != nil {
		fmt.Fprintln(stderr, "vprofile: write stats:", err)
		return 1
	}

	if dropped := prof.DroppedReturns(); dropped > 0 {
		fmt.Fprintf(stderr, "vprofile: warning: %d return event(s) had no matching call\n", dropped)
	}

	return 0
}

// replay feeds every recorded event through the profiler using a manual
// clock pinned to each record's own tick, rather than the profiler's live
// clock: a replayed log's timing is data, not something to be resampled.
//
// A recorded event log carries its own ctx_id/tag per record rather than
// through a live id/name/tag callback, so replay installs callbacks that
// simply read back whichever record is currently being dispatched — the
// same contract a real instrumentation hook's callbacks satisfy, just
// fed from the log instead of the host runtime's own bookkeeping.
func replay(prof *vprof.Profiler, clock *vclock.ManualClock, reader *eventlog.Reader) error {
	var current eventlog.Record
	prof.SetIDCallback(func() (int64, bool) { return current.CtxID, true })
	prof.SetTagCallback(func() (int64, bool) { return current.Tag, true })

	for {
		rec, ok := reader.Next()
		if !ok {
			return nil
		}
		current = rec
		clock.Set(rec.Tick)

		frame := vprof.FrameInfo{
			Module:    rec.Module,
			Name:      rec.Name,
			Line:      rec.Line,
			IsBuiltin: rec.IsBuiltin,
		}

		var kind vprof.EventKind
		switch rec.Kind {
		case "call":
			kind = vprof.EventCall
		case "c_call":
			kind = vprof.EventCCall
		case "return":
			kind = vprof.EventReturn
		case "c_return":
			kind = vprof.EventCReturn
		case "exception":
			kind = vprof.EventException
		default:
			continue
		}

		if err := prof.OnEvent(kind, frame); err != nil {
			return err
		}
	}
}
