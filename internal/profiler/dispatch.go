package profiler

import (
	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vctx"
)

// OnEvent is the single entry point the host runtime's instrumentation
// hook calls for every call/c_call/return/c_return/exception (spec.md
// §4.5, §4.7). frame is only consulted for call/c_call events.
//
// A panic inside the name or tag callback is recovered and counted in
// DispatchErrors; the event producing it is dropped rather than
// corrupting profiler state. A panicking id callback is also counted, but
// it is cleared and the event proceeds on the OS thread id.
func (p *Profiler) OnEvent(kind EventKind, frame FrameInfo) (err error) {
	p.mu.Lock()
	running := p.running
	paused := p.paused
	builtins := p.builtins
	multiContext := p.multiContext
	clock := p.clock
	idCB := p.idCB
	nameCB := p.nameCB
	tagCB := p.tagCB
	p.mu.Unlock()

	if !running || paused {
		return nil
	}
	if kind.IsBuiltin() && !builtins {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			p.countDispatchError()
			err = nil
		}
	}()

	var ctxID int64
	switch {
	case !multiContext:
		ctxID = 0
	case idCB == nil:
		// spec.md §4.4: "defaulting to the OS thread identifier" when no
		// id callback is installed; §5 NATIVE_THREAD requires this so
		// concurrent threads land on distinct contexts instead of
		// colliding on one shared call stack.
		ctxID = vctx.DefaultThreadID()
	default:
		id, ok, panicked := callIDCallback(idCB)
		switch {
		case panicked:
			// spec.md §4.4: "on exception ... the callback is cleared
			// and a fallback (OS-thread id) is used from then on."
			p.clearIDCallback()
			p.countDispatchError()
			ctxID = vctx.DefaultThreadID()
		case !ok || id == vctx.IgnoreContextID:
			return nil
		case id < 0:
			// spec.md §4.4: "on ... negative return other than −1, the
			// callback is cleared" — same fallback as a panic.
			p.clearIDCallback()
			ctxID = vctx.DefaultThreadID()
		default:
			ctxID = id
		}
	}

	name := ""
	if nameCB != nil {
		if n, ok := nameCB(ctxID); ok {
			name = n
		}
	}

	ctx := p.registry.ResolveOrCreate(ctxID, name)
	if name != "" && ctx.Name == "" {
		p.registry.ResolveName(ctxID, name)
	}
	if ctx.Paused {
		return nil
	}

	tag := vctx.UntaggedTag
	if tagCB != nil {
		if t, ok := tagCB(); ok {
			tag = t
		}
	}

	tick := clock.Tick()

	if kind.IsCall() {
		p.dispatchCall(ctx, frame, tick, tag)
		return nil
	}
	// return, c_return, and exception all pop the top frame identically
	// (spec.md §4.5's tie-break note: "exception-unwind events are
	// treated exactly as return events for each frame unwound").
	p.dispatchReturn(ctx, tick)
	return nil
}

func (p *Profiler) countDispatchError() {
	p.mu.Lock()
	p.dispatchErrors++
	p.mu.Unlock()
}

func (p *Profiler) clearIDCallback() {
	p.mu.Lock()
	p.idCB = nil
	p.mu.Unlock()
}

// callIDCallback invokes cb with its own recover, separate from OnEvent's
// blanket recover, so a panicking id callback can be distinguished from
// any other dispatcher failure and handled per spec.md §4.4 (clear the
// callback, fall back to the OS thread id) rather than just dropping the
// event.
func callIDCallback(cb IDCallback) (id int64, ok bool, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	id, ok = cb()
	return id, ok, false
}

func (p *Profiler) dispatchCall(ctx *vctx.Context, frame FrameInfo, tick int64, tag int64) {
	if ctx.Stack.Empty() {
		ctx.SchedCount++
	}

	meta := stats.Meta{
		Name:      frame.Name,
		Module:    frame.Module,
		Line:      frame.Line,
		IsBuiltin: frame.IsBuiltin,
		CtxID:     ctx.ID,
		CtxName:   ctx.Name,
		Tag:       tag,
	}
	entry, _ := p.store.FindOrCreate(frame.FullName(), meta)

	f, err := ctx.Stack.Push(entry.Index, tick)
	if err != nil {
		p.countDispatchError()
		return
	}

	entry.NCall++
	if !f.Recursive() {
		entry.NActualCall++
	}
}

// dispatchReturn implements spec.md §4.5's call/return accounting
// literally: parent.t_subtracted and the caller's ChildEdge are updated
// only when the popped frame is itself non-recursive — the same
// invariant that keeps a chain of direct self-recursion from
// double-subtracting time at every level (spec.md §8 boundary case B2).
func (p *Profiler) dispatchReturn(ctx *vctx.Context, tExit int64) {
	frame, ok := ctx.Stack.Pop()
	if !ok {
		p.mu.Lock()
		p.droppedReturns++
		p.mu.Unlock()
		return
	}

	elapsed := tExit - frame.TEnter
	self := elapsed - frame.TSubtracted
	recursive := frame.Recursive()

	entry, found := p.store.GetByIndex(frame.StatsIndex)
	if !found {
		return
	}

	if !recursive {
		entry.TTot += elapsed
		entry.TSub += self
	}

	ctx.CumulativeTTot += elapsed

	parentFrame, hasParent := ctx.Stack.Top()
	if !hasParent {
		return
	}
	parentEntry, found := p.store.GetByIndex(parentFrame.StatsIndex)
	if !found {
		return
	}

	edge := parentEntry.ChildEdgeFor(frame.StatsIndex)
	edge.NCall++
	if !recursive {
		ctx.Stack.AddToParentSubtracted(elapsed)
		edge.NActualCall++
		edge.TTot += elapsed
		edge.TSub += self
	}
}
