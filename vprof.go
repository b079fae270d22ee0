// Package vprof is a deterministic, multi-context function profiler for
// embedding in an interpreted host language runtime (spec.md §1). It
// tracks per-function call counts and timing globally, per execution
// context (OS thread or cooperative fiber), and per caller-assigned tag,
// with recursion-aware self/total time accounting.
//
// The host runtime is an external collaborator: it calls OnEvent for
// every call/c_call/return/c_return/exception and installs the id/name/
// tag callbacks describing its own execution-context model (spec.md
// §4.3, §4.4). Nothing in this package parses, evaluates, or otherwise
// understands the host language.
package vprof

import (
	"io"

	"github.com/viroprof/vprof/internal/profiler"
	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/vctx"
	"github.com/viroprof/vprof/internal/verror"
	"github.com/viroprof/vprof/internal/wire"
)

// Re-exported so callers never need to import internal/profiler directly.
type (
	EventKind    = profiler.EventKind
	FrameInfo    = profiler.FrameInfo
	IDCallback   = profiler.IDCallback
	NameCallback = profiler.NameCallback
	TagCallback  = profiler.TagCallback
	Entry        = stats.Entry
	ChildEdge    = stats.ChildEdge
	Context      = vctx.Context
	ClockMode    = vclock.Mode
	Format       = wire.Format
)

const (
	EventCall      = profiler.EventCall
	EventCCall     = profiler.EventCCall
	EventReturn    = profiler.EventReturn
	EventCReturn   = profiler.EventCReturn
	EventException = profiler.EventException

	ClockWall = vclock.WALL
	ClockCPU  = vclock.CPU

	FormatNative    = wire.FormatNative
	FormatCallgrind = wire.FormatCallgrind
	FormatPstat     = wire.FormatPstat
)

// Profiler is the public handle embedders create, configure, and drive.
// A Profiler is safe for concurrent use.
type Profiler struct {
	p *profiler.Profiler
}

// New creates a stopped Profiler using the given clock mode. stackLimit
// bounds each execution context's call-stack depth (0 = unlimited).
func New(mode ClockMode, stackLimit int) *Profiler {
	return &Profiler{p: profiler.New(mode, stackLimit)}
}

// SetIDCallback installs the context-identity callback used in
// multi-context mode (spec.md §4.4). Passing nil falls back to the
// platform's default OS-thread id.
func (pr *Profiler) SetIDCallback(cb IDCallback) { pr.p.SetIDCallback(cb) }

// SetNameCallback installs the context-name callback.
func (pr *Profiler) SetNameCallback(cb NameCallback) { pr.p.SetNameCallback(cb) }

// SetTagCallback installs the per-call tag callback.
func (pr *Profiler) SetTagCallback(cb TagCallback) { pr.p.SetTagCallback(cb) }

// Start begins profiling. builtins additionally tracks c_call/c_return
// events; multiContext attributes events to the id callback's context
// instead of the single implicit context 0 (spec.md §4.3).
func (pr *Profiler) Start(builtins, multiContext bool) error {
	return pr.p.Start(builtins, multiContext)
}

// Stop halts profiling; any frames left open across every context are
// discarded without contributing ttot/tsub (spec.md §4.8).
func (pr *Profiler) Stop() { pr.p.Stop() }

// Pause suspends event dispatch without discarding open frames; a
// matching Resume lets them keep accumulating. Nested calls are
// reference-counted.
func (pr *Profiler) Pause() { pr.p.Pause() }

// Resume reverses one Pause call.
func (pr *Profiler) Resume() { pr.p.Resume() }

// IsRunning reports whether the profiler is currently collecting events.
func (pr *Profiler) IsRunning() bool { return pr.p.IsRunning() }

// Clear discards all accumulated stats and known contexts. Returns
// verror.IllegalState if called while running (spec.md §4.6).
func (pr *Profiler) Clear() error { return pr.p.Clear() }

// OnEvent is the instrumentation hook the host runtime calls for every
// event (spec.md §4.7).
func (pr *Profiler) OnEvent(kind EventKind, frame FrameInfo) error {
	return pr.p.OnEvent(kind, frame)
}

// PauseContext suspends event dispatch for a single execution context
// (spec.md §1(a)'s cooperative-fiber suspension), leaving every other
// context and the profiler's global running state untouched.
func (pr *Profiler) PauseContext(ctxID int64) error { return pr.p.PauseContext(ctxID) }

// ResumeContext reverses a prior PauseContext for ctxID.
func (pr *Profiler) ResumeContext(ctxID int64) error { return pr.p.ResumeContext(ctxID) }

// ShiftContextTime compensates ctxID's open frames and cumulative total
// for delta ticks that should not count against it — e.g. the host
// runtime parking that fiber on blocking I/O (spec.md §4.7.1).
func (pr *Profiler) ShiftContextTime(ctxID int64, delta int64) error {
	return pr.p.ShiftContextTime(ctxID, delta)
}

// SetClock overrides the profiler's clock implementation. Primarily for
// replaying a recorded event log (whose events carry their own tick
// values) and for deterministic tests driven by vclock.ManualClock.
func (pr *Profiler) SetClock(c vclock.Clock) { pr.p.SetClock(c) }

// ClockMode reports the profiler's clock mode.
func (pr *Profiler) ClockMode() ClockMode { return pr.p.ClockMode() }

// SetClockMode changes the profiler's clock mode (spec.md §4.1, §6's
// set_clock_type). Fails with verror.IDClockModeLocked unless the
// profiler is stopped and its stats store is empty (spec.md §7, B6).
func (pr *Profiler) SetClockMode(mode ClockMode) error {
	return pr.p.SetClockMode(mode)
}

// ClockInfo reports the active clock's API name and resolution.
func (pr *Profiler) ClockInfo() vclock.Info {
	return vclock.New(pr.p.ClockMode()).Info()
}

// ClockTime returns the current raw tick of the profiler's clock
// (get_clock_time, spec.md §6).
func (pr *Profiler) ClockTime() int64 {
	return vclock.New(pr.p.ClockMode()).Tick()
}

// MemUsage reports the cumulative bytes the profiler's internal arenas
// have allocated across every tracked context's call stack
// (get_mem_usage, spec.md §6).
func (pr *Profiler) MemUsage() int64 {
	var total int64
	if contexts, ok := pr.p.Registry().Enumerate("id", false); ok {
		for _, c := range contexts {
			total += c.Stack.BytesAllocated()
		}
	}
	return total
}

// DroppedReturns reports how many return/c_return events had no
// matching open frame (see DESIGN.md's open-question resolution).
func (pr *Profiler) DroppedReturns() int64 { return pr.p.DroppedReturns() }

// FuncStats returns the matching, sorted function statistics (spec.md
// §4.6/§6's enumerate_stats/get_func_stats). Returns
// verror.IDNoStatsYet if the profiler has never been started and nothing
// has been loaded into its store either.
func (pr *Profiler) FuncStats(filter stats.Filter, sortKey string, descending bool) ([]*Entry, error) {
	return pr.p.FuncStats(filter, sortKey, descending)
}

// ContextStats returns every tracked Context sorted by field (spec.md
// §4.4/§6's get_context_stats).
func (pr *Profiler) ContextStats(field string, descending bool) ([]*Context, error) {
	out, ok := pr.p.Registry().Enumerate(field, descending)
	if !ok {
		keys := "name, id, ttot, sched_count"
		return nil, verror.NewInvalidArgument(verror.IDBadSortKey, [3]string{field, keys, ""})
	}
	return out, nil
}

// WriteStats serializes the profiler's current stats in the given
// format (spec.md §6's save_stats).
func (pr *Profiler) WriteStats(w io.Writer, format Format, creator string) error {
	return wire.Write(w, format, pr.p.Store(), creator)
}

// LoadStats merges a previously saved native-format stream into this
// profiler's store (spec.md §4.6's merge semantics, driven through the
// wire format's ReadNative).
func (pr *Profiler) LoadStats(r io.Reader) error {
	loaded, err := wire.ReadNative(r)
	if err != nil {
		return err
	}
	if err := pr.p.Store().Merge(loaded); err != nil {
		return err
	}
	pr.p.Store().SetRunID(loaded.RunID())
	return nil
}

// LastLoadedRunID returns the correlation id of the most recently loaded
// native-format snapshot, or "" if none has been loaded yet.
func (pr *Profiler) LastLoadedRunID() string {
	return pr.p.Store().RunID()
}

// ProfileScope starts the profiler (if not already running) and returns
// a stop function restoring its prior state, for the common
// "profile this block" usage pattern:
//
//	stop := prof.ProfileScope(false, false)
//	defer stop()
func (pr *Profiler) ProfileScope(builtins, multiContext bool) func() {
	wasRunning := pr.p.IsRunning()
	if !wasRunning {
		_ = pr.p.Start(builtins, multiContext)
	}
	return func() {
		if !wasRunning {
			pr.p.Stop()
		}
	}
}
