package profiler

import "fmt"

// EventKind is one of the five raw event kinds the host runtime's
// instrumentation hook emits (spec.md §1, §4.7).
type EventKind uint8

const (
	EventCall EventKind = iota
	EventCCall
	EventReturn
	EventCReturn
	EventException
)

func (k EventKind) String() string {
	switch k {
	case EventCall:
		return "call"
	case EventCCall:
		return "c_call"
	case EventReturn:
		return "return"
	case EventCReturn:
		return "c_return"
	case EventException:
		return "exception"
	default:
		return "unknown"
	}
}

// IsCall reports whether k opens a new frame.
func (k EventKind) IsCall() bool { return k == EventCall || k == EventCCall }

// IsBuiltin reports whether k concerns a native/builtin function.
func (k EventKind) IsBuiltin() bool { return k == EventCCall || k == EventCReturn }

// FrameInfo identifies the callable a call/c_call event refers to
// (spec.md §3's function identity). Module/Name/Line/IsBuiltin derive
// FullName exactly as spec.md §3 specifies: "<module>:<lineno> <name>"
// for interpreted functions, "<module>.<name>" for native ones.
type FrameInfo struct {
	Module    string
	Name      string
	Line      int
	IsBuiltin bool
}

// FullName computes the canonical function identity string.
func (fi FrameInfo) FullName() string {
	if fi.IsBuiltin {
		return fmt.Sprintf("%s.%s", fi.Module, fi.Name)
	}
	return fmt.Sprintf("%s:%d %s", fi.Module, fi.Line, fi.Name)
}
