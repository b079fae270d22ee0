// Package vctx implements the ContextRegistry (spec.md §4.4): the
// id -> Context map, first-sight allocation, name resolution, and the
// user-installable identity/name/tag callback contracts.
package vctx

import (
	"sort"
	"strings"
	"sync"

	"github.com/viroprof/vprof/internal/callstack"
)

// IgnoreContextID is the reserved id-callback return value meaning
// "unknown/ignore this event" (spec.md §4.4).
const IgnoreContextID int64 = -1

// UntaggedTag is the reserved tag-callback return value meaning
// "untagged" (spec.md §4.4).
const UntaggedTag int64 = -1

// Context is a Context record (spec.md §3): one per OS thread or fiber,
// identified by the active backend's id callback.
type Context struct {
	ID               int64
	Name             string
	Stack            *callstack.Stack
	SchedCount       int64
	CumulativeTTot   int64
	PausedAtTick     int64
	LastResumedAtTick int64
	Paused           bool
}

// Registry maps context-id -> Context (spec.md §4.4).
type Registry struct {
	mu       sync.Mutex
	byID     map[int64]*Context
	order    []int64
	stackCap int
}

// New creates an empty Registry. stackCap bounds each Context's call
// stack depth (0 = unlimited), forwarded to callstack.New.
func New(stackCap int) *Registry {
	return &Registry{byID: make(map[int64]*Context), stackCap: stackCap}
}

// ResolveOrCreate returns the Context for id, allocating one on first
// sight. name is used only for a freshly created Context; an already
// registered Context keeps whatever name it has until ResolveName updates
// it (spec.md §4.4's "not yet known" retry contract).
func (r *Registry) ResolveOrCreate(id int64, name string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx, ok := r.byID[id]; ok {
		return ctx
	}

	ctx := &Context{
		ID:    id,
		Name:  name,
		Stack: callstack.New(r.stackCap),
	}
	r.byID[id] = ctx
	r.order = append(r.order, id)
	return ctx
}

// Get looks up a Context without creating one.
func (r *Registry) Get(id int64) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.byID[id]
	return ctx, ok
}

// ResolveName sets the name of context id, whatever it was before. The
// dispatcher calls it only while that name is still empty ("not yet
// known"), on each event until the name callback succeeds (spec.md §4.4).
func (r *Registry) ResolveName(id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx, ok := r.byID[id]; ok {
		ctx.Name = name
	}
}

// PauseContext marks ctx as paused, causing the dispatcher to ignore
// further events addressed to it until ResumeContext (spec.md §4.4's
// per-context paused flag, §1(a)'s cooperative-fiber suspension). Returns
// false if id is unknown.
func (r *Registry) PauseContext(id int64, tick int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.byID[id]
	if !ok {
		return false
	}
	ctx.Paused = true
	ctx.PausedAtTick = tick
	return true
}

// ResumeContext clears ctx's paused flag and records the resumption tick
// (spec.md §4.4/§1(a)). Returns false if id is unknown.
func (r *Registry) ResumeContext(id int64, tick int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.byID[id]
	if !ok {
		return false
	}
	ctx.Paused = false
	ctx.LastResumedAtTick = tick
	return true
}

// Clear discards every tracked Context (profiler clear_stats, §4.7).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[int64]*Context)
	r.order = nil
}

// Len returns the number of tracked contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// ValidSortFields enumerates the context sort keys spec.md §4.4 names.
var ValidSortFields = map[string]bool{
	"name": true, "id": true, "ttot": true, "sched_count": true,
}

// Enumerate returns every Context sorted by field in ascending or
// descending order (spec.md §4.4). An unrecognized field yields nil and
// false; callers translate that to verror.InvalidArgument.
func (r *Registry) Enumerate(field string, descending bool) ([]*Context, bool) {
	if !ValidSortFields[field] {
		return nil, false
	}

	r.mu.Lock()
	out := make([]*Context, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	r.mu.Unlock()

	ascending := func(i, j int) bool {
		a, b := out[i], out[j]
		switch field {
		case "name":
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case "id":
			return a.ID < b.ID
		case "ttot":
			return a.CumulativeTTot < b.CumulativeTTot
		case "sched_count":
			return a.SchedCount < b.SchedCount
		default:
			return false
		}
	}
	if descending {
		sort.SliceStable(out, func(i, j int) bool { return ascending(j, i) })
	} else {
		sort.SliceStable(out, ascending)
	}
	return out, true
}
