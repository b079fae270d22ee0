// Package callstack implements the per-context stack of active call
// frames (spec.md §4.5): entry timestamps, recursion detection, and the
// call/return state machine that drives StatsEntry ttot/tsub accounting.
//
// Frames are backed by internal/arena's FreeList so that deep or tight
// recursion amortizes allocation, per spec.md §4.2's component design.
package callstack

import "github.com/viroprof/vprof/internal/arena"

// Frame is an ActiveFrame (spec.md §3).
type Frame struct {
	StatsIndex int
	TEnter     int64
	TSubtracted int64
	// RecursionDepthSnapshot is the depth (0 = outermost frame) of the
	// outermost earlier active frame for the same StatsIndex, or -1 if
	// this entry is not recursive.
	RecursionDepthSnapshot int
}

// Recursive reports whether this frame is a recursive re-entry (spec.md
// §4.5 step 2).
func (f *Frame) Recursive() bool { return f.RecursionDepthSnapshot >= 0 }

// Stack is the per-Context call stack (spec.md §4.5).
type Stack struct {
	arena  *arena.FreeList[Frame]
	active []arena.Handle
}

// New creates an empty Stack. limit caps live frames (0 = unlimited);
// exceeding it surfaces as verror.OutOfMemory from Push.
func New(limit int) *Stack {
	return &Stack{arena: arena.New[Frame](limit)}
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int { return len(s.active) }

// Empty reports whether the stack has no active frames.
func (s *Stack) Empty() bool { return len(s.active) == 0 }

// Push records a call event for statsIndex at tEnter, detecting recursion
// against the currently active frames (spec.md §4.5 step 2).
func (s *Stack) Push(statsIndex int, tEnter int64) (*Frame, error) {
	depth := -1
	for i, h := range s.active {
		if f := s.arena.Get(h); f.StatsIndex == statsIndex {
			depth = i
			break
		}
	}

	h, f, err := s.arena.Allocate()
	if err != nil {
		return nil, err
	}
	f.StatsIndex = statsIndex
	f.TEnter = tEnter
	f.TSubtracted = 0
	f.RecursionDepthSnapshot = depth

	s.active = append(s.active, h)
	return f, nil
}

// Top returns the innermost active frame, or (nil, false) if empty.
func (s *Stack) Top() (*Frame, bool) {
	if len(s.active) == 0 {
		return nil, false
	}
	return s.arena.Get(s.active[len(s.active)-1]), true
}

// Pop removes and returns the innermost active frame (a copy, since the
// backing block is freed immediately). Returns false if the stack is
// empty — callers (the dispatcher) treat a return with no matching call
// as a no-op per spec.md §4.5's tie-break rule.
func (s *Stack) Pop() (Frame, bool) {
	if len(s.active) == 0 {
		return Frame{}, false
	}
	h := s.active[len(s.active)-1]
	s.active = s.active[:len(s.active)-1]
	f := *s.arena.Get(h)
	s.arena.Free(h)
	return f, true
}

// AddToParentSubtracted adds delta to the t_subtracted of the (now) top
// frame, i.e. the parent of whatever frame was just popped (spec.md §4.5
// step 4).
func (s *Stack) AddToParentSubtracted(delta int64) {
	if f, ok := s.Top(); ok {
		f.TSubtracted += delta
	}
}

// ShiftOpenFrames adds delta to every open frame's TEnter (spec.md
// §4.7.1's shift_context_time).
func (s *Stack) ShiftOpenFrames(delta int64) {
	for _, h := range s.active {
		s.arena.Get(h).TEnter += delta
	}
}

// DiscardAll drops every active frame without contributing to ttot/tsub,
// used on early profiler stop (spec.md §4.8): those frames already
// incremented NCall at call time but never receive a matching return.
func (s *Stack) DiscardAll() {
	for _, h := range s.active {
		s.arena.Free(h)
	}
	s.active = nil
}

// Snapshot copies the currently active frames top-to-bottom-reversed
// (outermost first), for read-only inspection (e.g. enumerate_stats)
// without holding the stack open. Per spec.md §5(b).
func (s *Stack) Snapshot() []Frame {
	out := make([]Frame, len(s.active))
	for i, h := range s.active {
		out[i] = *s.arena.Get(h)
	}
	return out
}

// BytesAllocated reports the arena's cumulative allocation, contributing
// to get_mem_usage() (spec.md §6).
func (s *Stack) BytesAllocated() int64 {
	return s.arena.BytesAllocated()
}
