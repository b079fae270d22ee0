package profiler

import (
	"testing"

	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/vctx"
)

func newTestProfiler(t *testing.T) (*Profiler, *vclock.ManualClock) {
	t.Helper()
	clock := vclock.NewManual(1000)
	p := New(vclock.WALL, 0)
	p.SetClock(clock)
	if err := p.Start(false, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return p, clock
}

func call(p *Profiler, clock *vclock.ManualClock, tick int64, module, name string, line int) {
	clock.Set(tick)
	_ = p.OnEvent(EventCall, FrameInfo{Module: module, Name: name, Line: line})
}

func ret(p *Profiler, clock *vclock.ManualClock, tick int64) {
	clock.Set(tick)
	_ = p.OnEvent(EventReturn, FrameInfo{})
}

// TestNonRecursiveChain reproduces spec.md §8's boundary case B4: a
// straight-line a->b->c->d call chain with no recursion, where each
// level's ttot and tsub are fully determined by elapsed minus the
// immediately preceding child's contribution.
func TestNonRecursiveChain(t *testing.T) {
	p, clock := newTestProfiler(t)

	call(p, clock, 0, "m", "a", 1)
	call(p, clock, 0, "m", "b", 2)
	call(p, clock, 0, "m", "c", 3)
	call(p, clock, 0, "m", "d", 4)
	ret(p, clock, 1) // d returns, elapsed=1
	ret(p, clock, 3) // c returns, elapsed=3
	ret(p, clock, 5) // b returns, elapsed=5
	ret(p, clock, 6) // a returns, elapsed=6

	cases := []struct {
		name           string
		ttot, tsub     int64
		ncall, nactual int64
	}{
		{"m:1 a", 6, 1, 1, 1},
		{"m:2 b", 5, 2, 1, 1},
		{"m:3 c", 3, 2, 1, 1},
		{"m:4 d", 1, 1, 1, 1},
	}
	for _, c := range cases {
		e, ok := p.Store().GetByFullName(c.name)
		if !ok {
			t.Fatalf("missing entry %q", c.name)
		}
		if e.TTot != c.ttot || e.TSub != c.tsub || e.NCall != c.ncall || e.NActualCall != c.nactual {
			t.Errorf("%s: got ttot=%d tsub=%d ncall=%d nactual=%d, want ttot=%d tsub=%d ncall=%d nactual=%d",
				c.name, e.TTot, e.TSub, e.NCall, e.NActualCall, c.ttot, c.tsub, c.ncall, c.nactual)
		}
	}
}

// TestSelfRecursiveChain reproduces spec.md §8's boundary case B2: f
// calling itself twice more (f->f->f). Only the outermost invocation is
// non-recursive, so only it contributes to f's own ttot/tsub; the
// recursive invocations only add to the f->f ChildEdge's ncall, with no
// ttot or tsub on that edge.
func TestSelfRecursiveChain(t *testing.T) {
	p, clock := newTestProfiler(t)

	call(p, clock, 0, "m", "f", 1)
	call(p, clock, 0, "m", "f", 1)
	call(p, clock, 0, "m", "f", 1)
	ret(p, clock, 3)  // innermost f returns, elapsed=3
	ret(p, clock, 6)  // middle f returns, elapsed=6
	ret(p, clock, 10) // outer f returns, elapsed=10

	e, ok := p.Store().GetByFullName("m:1 f")
	if !ok {
		t.Fatal("missing entry")
	}
	if e.NCall != 3 || e.NActualCall != 1 || e.TTot != 10 || e.TSub != 10 {
		t.Fatalf("got ncall=%d nactual=%d ttot=%d tsub=%d, want 3 1 10 10",
			e.NCall, e.NActualCall, e.TTot, e.TSub)
	}

	edge, ok := e.ChildByIndex(e.Index)
	if !ok {
		t.Fatal("missing self-edge")
	}
	if edge.NCall != 2 || edge.NActualCall != 0 || edge.TTot != 0 || edge.TSub != 0 {
		t.Fatalf("edge f->f got ncall=%d nactual=%d ttot=%d tsub=%d, want 2 0 0 0",
			edge.NCall, edge.NActualCall, edge.TTot, edge.TSub)
	}
}

func TestDroppedReturnsCounted(t *testing.T) {
	p, clock := newTestProfiler(t)
	ret(p, clock, 5)
	if got := p.DroppedReturns(); got != 1 {
		t.Fatalf("DroppedReturns() = %d, want 1", got)
	}
}

func TestEarlyStopDiscardsOpenFrames(t *testing.T) {
	p, clock := newTestProfiler(t)
	call(p, clock, 0, "m", "a", 1)
	call(p, clock, 0, "m", "b", 2)
	p.Stop()

	if ctx, ok := p.Registry().Get(0); !ok || !ctx.Stack.Empty() {
		t.Fatal("expected Stop to discard context 0's open frames")
	}

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if p.Store().Len() != 0 {
		t.Fatalf("expected empty store after clear, got %d entries", p.Store().Len())
	}
}

func TestShiftContextTime(t *testing.T) {
	p, clock := newTestProfiler(t)
	call(p, clock, 100, "m", "a", 1)

	if err := p.ShiftContextTime(0, 30); err != nil {
		t.Fatalf("ShiftContextTime: %v", err)
	}

	ret(p, clock, 140) // raw elapsed would be 40, minus the 30-tick shift
	e, ok := p.Store().GetByFullName("m:1 a")
	if !ok {
		t.Fatal("missing entry")
	}
	if e.TTot != 10 {
		t.Fatalf("TTot = %d, want 10 (40 raw - 30 shifted)", e.TTot)
	}
}

// TestMultiContextWithNoCallbackFallsBackToThreadID reproduces spec.md
// §4.4's "defaulting to the OS thread identifier" fallback and §5's
// NATIVE_THREAD model: with multi-context dispatch on but no id callback
// installed, events land on the calling thread's id rather than
// colliding on context 0.
func TestMultiContextWithNoCallbackFallsBackToThreadID(t *testing.T) {
	clock := vclock.NewManual(1000)
	p := New(vclock.WALL, 0)
	p.SetClock(clock)
	if err := p.Start(false, true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Set(0)
	_ = p.OnEvent(EventCall, FrameInfo{Module: "m", Name: "a", Line: 1})
	clock.Set(1)
	_ = p.OnEvent(EventReturn, FrameInfo{})

	wantID := vctx.DefaultThreadID()
	if _, ok := p.Registry().Get(wantID); !ok {
		t.Fatalf("expected a context keyed by the OS thread id %d", wantID)
	}
	if ctxs, ok := p.Registry().Enumerate("id", false); !ok || len(ctxs) != 1 {
		t.Fatalf("expected exactly one context, got %v (ok=%v)", ctxs, ok)
	}
}

// TestIDCallbackNegativeReturnClearsCallback reproduces spec.md §4.4: a
// negative id other than the reserved -1 "ignore" sentinel causes the
// callback to be cleared and the OS thread id to be used from then on.
func TestIDCallbackNegativeReturnClearsCallback(t *testing.T) {
	clock := vclock.NewManual(1000)
	p := New(vclock.WALL, 0)
	p.SetClock(clock)
	if err := p.Start(false, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.SetIDCallback(func() (int64, bool) { return -7, true })

	clock.Set(0)
	_ = p.OnEvent(EventCall, FrameInfo{Module: "m", Name: "a", Line: 1})
	clock.Set(1)
	_ = p.OnEvent(EventReturn, FrameInfo{})

	wantID := vctx.DefaultThreadID()
	if _, ok := p.Registry().Get(wantID); !ok {
		t.Fatalf("expected the cleared callback to fall back to thread id %d", wantID)
	}
}

func TestBuiltinEventsIgnoredWhenDisabled(t *testing.T) {
	p, clock := newTestProfiler(t)
	clock.Set(0)
	_ = p.OnEvent(EventCCall, FrameInfo{Module: "builtins", Name: "len", IsBuiltin: true})
	if p.Store().Len() != 0 {
		t.Fatalf("expected c_call to be ignored, store has %d entries", p.Store().Len())
	}
}

// TestExceptionClosesFrameLikeReturn reproduces spec.md §4.5's tie-break
// note: an exception event unwinding a frame accounts for it exactly as a
// return would, rather than leaving it open.
func TestExceptionClosesFrameLikeReturn(t *testing.T) {
	p, clock := newTestProfiler(t)

	call(p, clock, 0, "m", "a", 1)
	clock.Set(7)
	if err := p.OnEvent(EventException, FrameInfo{}); err != nil {
		t.Fatalf("OnEvent(exception): %v", err)
	}

	e, ok := p.Store().GetByFullName("m:1 a")
	if !ok {
		t.Fatal("missing entry for a")
	}
	if e.TTot != 7 || e.TSub != 7 {
		t.Fatalf("got ttot=%d tsub=%d, want 7 7 (exception unwound the frame like a return)", e.TTot, e.TSub)
	}
	if p.DroppedReturns() != 0 {
		t.Fatalf("expected no dropped returns, got %d", p.DroppedReturns())
	}
}
