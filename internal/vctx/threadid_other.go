//go:build !linux

package vctx

import "sync/atomic"

var fallbackThreadCounter int64

// DefaultThreadID falls back to a monotonic counter on platforms without
// a cheap OS-thread-id syscall exposed through golang.org/x/sys. It does
// not identify a real OS thread; it exists so the profiler has a context
// identity at all when the embedder installs no id callback.
func DefaultThreadID() int64 {
	return atomic.AddInt64(&fallbackThreadCounter, 1)
}
