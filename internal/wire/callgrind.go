package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vclock"
)

// ticksToMicros converts a raw tick count to integer microseconds using
// the clock mode's ticks-per-second, per spec.md §6's "costs are emitted
// as integer microseconds (ticks × 1e6)" (ticks × 1e6 / ticks_per_second,
// i.e. ticks converted to seconds then scaled to microseconds).
func ticksToMicros(ticks int64, ticksPerSecond int64) int64 {
	if ticksPerSecond == 0 {
		return 0
	}
	return (ticks * 1_000_000) / ticksPerSecond
}

// WriteCallgrind renders store in the callgrind profile-data grammar
// (fl/fn compression ids, cfl/cfn/calls per callee edge) that tools like
// KCachegrind and QCachegrind already understand. Entry.Index doubles as
// the fl/fn compression id since it is already unique and stable within a
// store (spec.md §3 I5).
func WriteCallgrind(w io.Writer, store *stats.Store, creator string) error {
	bw := bufio.NewWriter(w)

	mode, _ := store.ClockMode()
	tps := vclock.New(mode).TicksPerSecond()

	fmt.Fprintln(bw, "version: 1")
	fmt.Fprintf(bw, "creator: %s\n", creator)
	fmt.Fprintln(bw, "pid: 0")
	fmt.Fprintln(bw, "cmd: vprofile")
	fmt.Fprintln(bw, "part: 1")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "events: Ticks")
	fmt.Fprintln(bw)

	entries, err := store.Iterate(stats.Filter{}, "name", false)
	if err != nil {
		return err
	}
	byIndex := make(map[int]*stats.Entry, len(entries))
	for _, e := range entries {
		byIndex[e.Index] = e
	}

	for _, e := range entries {
		fmt.Fprintf(bw, "fl=(%d) %s\n", e.Index, e.Module)
		fmt.Fprintf(bw, "fn=(%d) %s %s:%d\n", e.Index, e.Name, e.Module, e.Line)
		fmt.Fprintf(bw, "%d %d\n", e.Line, ticksToMicros(e.TSub, tps))

		for _, edge := range e.Children() {
			callee, ok := byIndex[edge.CalleeIndex]
			if !ok {
				continue
			}
			fmt.Fprintf(bw, "cfl=(%d)\n", callee.Index)
			fmt.Fprintf(bw, "cfn=(%d)\n", callee.Index)
			fmt.Fprintf(bw, "calls=%d 0\n", edge.NCall)
			fmt.Fprintf(bw, "0 %d\n", ticksToMicros(edge.TTot, tps))
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}
