// Package verror provides structured error handling for the profiler.
//
// Errors are categorized so that callers can switch on Category without
// parsing message text, while still getting an interpolated,
// human-readable Message for logs and CLI output.
package verror

// Category classifies an error per spec.md §7's error taxonomy.
type Category uint8

const (
	InvalidArgument  Category = iota // bad sort key, bad clock mode, non-callable callback, negative id
	IllegalState                     // set_clock_type while running, clear_stats while running, stats before any run
	ClockModeMismatch                // merge or load across different clock modes
	DecodeError                      // malformed serialized stream, version mismatch
	OutOfMemory                      // arena exhaustion
	NotSupported                     // unknown serialization format
)

// String returns the category name for display.
func (c Category) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case IllegalState:
		return "IllegalState"
	case ClockModeMismatch:
		return "ClockModeMismatch"
	case DecodeError:
		return "DecodeError"
	case OutOfMemory:
		return "OutOfMemory"
	case NotSupported:
		return "NotSupported"
	default:
		return "Unknown"
	}
}

// Error IDs: kebab-case identifiers for programmatic handling, each with
// a message template in messageTemplates (error.go).
const (
	IDBadSortKey        = "bad-sort-key"
	IDBadFilterField     = "bad-filter-field"
	IDBadClockModeName   = "bad-clock-mode-name"
	IDNonCallableCallback = "non-callable-callback"
	IDNegativeContextID  = "negative-context-id"
	IDBadSortOrder       = "bad-sort-order"
	IDBadOutputFormat    = "bad-output-format"

	IDClockModeLocked    = "clock-mode-locked"
	IDProfilerRunning    = "profiler-running"
	IDNoStatsYet         = "no-stats-yet"

	IDClockModeMismatch  = "clock-mode-mismatch"

	IDMalformedStream    = "malformed-stream"
	IDVersionMismatch    = "version-mismatch"

	IDArenaExhausted     = "arena-exhausted"

	IDUnknownFormat      = "unknown-format"
)
