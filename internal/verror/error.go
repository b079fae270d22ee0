package verror

import (
	"fmt"
	"strings"
)

// Error is a structured profiler error: a Category, a symbolic ID, up to
// three interpolated args, and a formatted Message.
type Error struct {
	Category Category
	ID       string
	Args     [3]string
	Message  string
}

// New creates an Error, generating Message from ID and Args.
func New(category Category, id string, args [3]string) *Error {
	return &Error{
		Category: category,
		ID:       id,
		Args:     args,
		Message:  formatMessage(id, args),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error (%s): %s", e.Category, e.ID, e.Message)
}

// Factory functions, one per category.

func NewInvalidArgument(id string, args [3]string) *Error {
	return New(InvalidArgument, id, args)
}

func NewIllegalState(id string, args [3]string) *Error {
	return New(IllegalState, id, args)
}

func NewClockModeMismatch(id string, args [3]string) *Error {
	return New(ClockModeMismatch, id, args)
}

func NewDecodeError(id string, args [3]string) *Error {
	return New(DecodeError, id, args)
}

func NewOutOfMemory(id string, args [3]string) *Error {
	return New(OutOfMemory, id, args)
}

func NewNotSupported(id string, args [3]string) *Error {
	return New(NotSupported, id, args)
}

func formatMessage(id string, args [3]string) string {
	template, ok := messageTemplates[id]
	if !ok {
		template = "error: %1 %2 %3"
	}

	msg := template
	msg = strings.ReplaceAll(msg, "%1", args[0])
	msg = strings.ReplaceAll(msg, "%2", args[1])
	msg = strings.ReplaceAll(msg, "%3", args[2])
	return msg
}

var messageTemplates = map[string]string{
	IDBadSortKey:          "invalid sort key: %1 (valid: %2)",
	IDBadFilterField:      "invalid filter field: %1",
	IDBadClockModeName:    "invalid clock mode: %1 (valid: WALL, CPU)",
	IDNonCallableCallback: "callback for %1 is not callable",
	IDNegativeContextID:   "context id must be non-negative, got %1",
	IDBadSortOrder:        "invalid sort order: %1 (valid: asc, desc)",
	IDBadOutputFormat:     "invalid output format: %1 (valid: native, callgrind, pstat)",

	IDClockModeLocked: "cannot change clock mode: profiler is running or stats are non-empty",
	IDProfilerRunning: "cannot %1 while profiler is running",
	IDNoStatsYet:      "no stats available: profiler has never been started",

	IDClockModeMismatch: "clock mode mismatch: store is %1, incoming is %2",

	IDMalformedStream: "malformed stream: %1",
	IDVersionMismatch: "version mismatch: expected %1, got %2",

	IDArenaExhausted: "arena exhausted: %1 blocks in use, limit %2",

	IDUnknownFormat: "unknown serialization format: %1",
}
