// Package profiler ties internal/callstack, internal/stats and
// internal/vctx together into the dispatcher described by spec.md §4.5,
// §4.7 and §4.8: the state machine that turns raw call/return events into
// StatsEntry and ChildEdge updates.
package profiler

import (
	"sync"

	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/vctx"
	"github.com/viroprof/vprof/internal/verror"
)

// IDCallback resolves the current execution context's identity. ok=false
// means "unknown", which the dispatcher treats as vctx.IgnoreContextID.
type IDCallback func() (id int64, ok bool)

// NameCallback resolves a human-readable name for a context id.
type NameCallback func(id int64) (name string, ok bool)

// TagCallback resolves the caller-defined tag for the current call.
type TagCallback func() (tag int64, ok bool)

// Profiler is the profiler instance backing the vprof public facade
// (spec.md §4). One Profiler owns one Store and one Registry; spec.md
// does not require more than one live at a time, but nothing here
// prevents it.
type Profiler struct {
	mu sync.Mutex

	running      bool
	everStarted  bool
	paused       bool
	pauseDepth   int
	builtins     bool
	multiContext bool
	clockMode    vclock.Mode
	clock        vclock.Clock

	idCB   IDCallback
	nameCB NameCallback
	tagCB  TagCallback

	store    *stats.Store
	registry *vctx.Registry

	droppedReturns  int64
	dispatchErrors  int64
	stackLimit      int
}

// New creates a stopped Profiler in the given clock mode. stackLimit
// bounds each context's call-stack depth (0 = unlimited).
func New(mode vclock.Mode, stackLimit int) *Profiler {
	return &Profiler{
		clockMode:  mode,
		clock:      vclock.New(mode),
		store:      stats.New(),
		registry:   vctx.New(stackLimit),
		stackLimit: stackLimit,
	}
}

// SetClock overrides the clock implementation, primarily for
// deterministic tests driven by vclock.ManualClock.
func (p *Profiler) SetClock(c vclock.Clock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = c
}

// SetIDCallback installs the context-identity callback (spec.md §4.4).
func (p *Profiler) SetIDCallback(cb IDCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idCB = cb
}

// SetNameCallback installs the context-name callback.
func (p *Profiler) SetNameCallback(cb NameCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nameCB = cb
}

// SetTagCallback installs the tag callback.
func (p *Profiler) SetTagCallback(cb TagCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tagCB = cb
}

// Start begins profiling. builtins enables c_call/c_return tracking;
// multiContext enables the id callback (single-context mode always
// attributes events to context id 0, per spec.md §4.3).
func (p *Profiler) Start(builtins, multiContext bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.everStarted = true
	p.paused = false
	p.pauseDepth = 0
	p.builtins = builtins
	p.multiContext = multiContext
	return nil
}

// Stop halts profiling. Any frames still open across every context are
// discarded without contributing to ttot/tsub (spec.md §4.8's early-stop
// semantics) — they already incremented NCall at call time, but since no
// matching return will ever arrive, their elapsed/self time is simply
// lost rather than guessed at.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.paused = false
	p.pauseDepth = 0
	p.mu.Unlock()

	if contexts, ok := p.registry.Enumerate("id", false); ok {
		for _, ctx := range contexts {
			ctx.Stack.DiscardAll()
		}
	}
}

// Pause suspends dispatch globally without discarding open frames. Their
// entry ticks are left as they are, so the paused interval is still part
// of the elapsed time they record when they return after a matching
// Resume. Nested Pause/Resume is reference-counted.
func (p *Profiler) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseDepth++
	p.paused = p.pauseDepth > 0
}

// Resume reverses one Pause call.
func (p *Profiler) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pauseDepth > 0 {
		p.pauseDepth--
	}
	p.paused = p.pauseDepth > 0
}

// IsRunning reports whether the profiler is currently collecting events.
func (p *Profiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Clear discards all accumulated stats and known contexts. It is an
// error to call Clear while running (spec.md §4.6).
func (p *Profiler) Clear() error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		return verror.NewIllegalState(verror.IDProfilerRunning, [3]string{"clear_stats"})
	}
	p.store.Clear()
	p.registry.Clear()
	p.mu.Lock()
	p.droppedReturns = 0
	p.dispatchErrors = 0
	p.mu.Unlock()
	return nil
}

// FuncStats returns the matching, sorted function statistics (spec.md
// §4.6/§6's get_func_stats). Returns verror.IDNoStatsYet if the profiler
// has never been started and its store has never been populated by a
// load/merge either — there being genuinely nothing to report (spec.md
// §7).
func (p *Profiler) FuncStats(filter stats.Filter, sortKey string, descending bool) ([]*stats.Entry, error) {
	p.mu.Lock()
	everStarted := p.everStarted
	p.mu.Unlock()
	if !everStarted && p.store.Len() == 0 {
		return nil, verror.NewIllegalState(verror.IDNoStatsYet, [3]string{})
	}
	return p.store.Iterate(filter, sortKey, descending)
}

// Store exposes the underlying stats.Store for read-only enumeration.
func (p *Profiler) Store() *stats.Store { return p.store }

// Registry exposes the underlying vctx.Registry for read-only enumeration.
func (p *Profiler) Registry() *vctx.Registry { return p.registry }

// ClockMode reports the profiler's clock mode.
func (p *Profiler) ClockMode() vclock.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clockMode
}

// SetClockMode changes the profiler's clock mode (spec.md §4.1's
// set_clock_type). A mode switch is only legal while the store is empty
// and the profiler is not running; otherwise it returns
// verror.IDClockModeLocked (spec.md §7, boundary case B6).
func (p *Profiler) SetClockMode(mode vclock.Mode) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running || p.store.Len() > 0 {
		return verror.NewIllegalState(verror.IDClockModeLocked, [3]string{})
	}

	p.mu.Lock()
	p.clockMode = mode
	p.clock = vclock.New(mode)
	p.mu.Unlock()
	p.store.SetClockMode(mode)
	return nil
}

// DroppedReturns reports how many return/c_return events arrived with no
// matching open frame (stale returns across a clear, or events lost
// before profiling started). Not part of spec.md's original surface; a
// diagnostic counter resolving the "return without a matching call" open
// question (see DESIGN.md).
func (p *Profiler) DroppedReturns() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.droppedReturns
}

// DispatchErrors reports how many dispatcher-local errors occurred: a
// panicking id callback (cleared, with the event then attributed to the
// OS thread id), any other panic during dispatch (the event is dropped),
// or a call frame the context's stack could not allocate.
func (p *Profiler) DispatchErrors() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatchErrors
}

// PauseContext suspends event dispatch for a single execution context
// without affecting any other context or the profiler's global running
// state (spec.md §1(a)/§4.4's per-context paused flag, used for
// cooperative-fiber suspension across a context switch).
func (p *Profiler) PauseContext(ctxID int64) error {
	if !p.registry.PauseContext(ctxID, p.tickNow()) {
		return verror.NewInvalidArgument(verror.IDNegativeContextID, [3]string{"pause_context"})
	}
	return nil
}

// ResumeContext clears a context's paused flag, set by a prior
// PauseContext (spec.md §1(a)/§4.4).
func (p *Profiler) ResumeContext(ctxID int64) error {
	if !p.registry.ResumeContext(ctxID, p.tickNow()) {
		return verror.NewInvalidArgument(verror.IDNegativeContextID, [3]string{"resume_context"})
	}
	return nil
}

func (p *Profiler) tickNow() int64 {
	p.mu.Lock()
	c := p.clock
	p.mu.Unlock()
	return c.Tick()
}

// ShiftContextTime compensates ctxID's open frames and cumulative total
// for a span of wall time that should not count against it — e.g. the
// host runtime blocking that fiber on I/O (spec.md §4.7.1). delta is
// added to every open frame's entry tick and subtracted from the running
// cumulative total, so a positive delta shortens the elapsed time those
// frames record when they return (a negative delta lengthens it).
func (p *Profiler) ShiftContextTime(ctxID int64, delta int64) error {
	ctx, ok := p.registry.Get(ctxID)
	if !ok {
		return verror.NewInvalidArgument(verror.IDNegativeContextID, [3]string{"shift_context_time"})
	}
	ctx.Stack.ShiftOpenFrames(delta)
	ctx.CumulativeTTot -= delta
	return nil
}
