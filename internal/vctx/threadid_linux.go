//go:build linux

package vctx

import "golang.org/x/sys/unix"

// DefaultThreadID returns the calling OS thread's id, used as the
// fallback context identity when no id callback is installed (spec.md
// §4.4). Like Go's goroutine-to-thread mapping in general, this value can
// change across scheduling points for the same goroutine; callers that
// need stable fiber identity must install their own id callback.
func DefaultThreadID() int64 {
	return int64(unix.Gettid())
}
