// Package stats implements the indexed, mergeable statistics store
// (spec.md §3, §4.6): a StatsEntry per distinct full_name, each carrying
// an embedded caller->callee ChildEdge table.
package stats

import "github.com/viroprof/vprof/internal/htable"

// ChildEdge is a caller->callee aggregate (spec.md §3).
type ChildEdge struct {
	CalleeIndex int
	NCall       int64
	NActualCall int64
	TTot        int64
	TSub        int64
}

// Meta is the identity metadata captured at first observation of a
// function (spec.md §3's StatsEntry fields not touched by accounting).
type Meta struct {
	Name      string
	Module    string
	Line      int
	IsBuiltin bool
	CtxID     int64
	CtxName   string
	Tag       int64
}

// Entry is a StatsEntry (spec.md §3): per-function aggregate statistics
// plus the caller->callee edges observed from this function.
type Entry struct {
	FullName    string
	Name        string
	Module      string
	Line        int
	IsBuiltin   bool
	Index       int
	NCall       int64
	NActualCall int64
	TTot        int64
	TSub        int64
	CtxID       int64
	CtxName     string
	Tag         int64

	// children maps callee Index -> *ChildEdge, in first-observed order
	// (spec.md §2's HashTable component: "used for the function index and
	// the children map").
	children *htable.Table[int, *ChildEdge]
}

func newEntry(index int, fullName string, m Meta) *Entry {
	return &Entry{
		FullName:  fullName,
		Name:      m.Name,
		Module:    m.Module,
		Line:      m.Line,
		IsBuiltin: m.IsBuiltin,
		Index:     index,
		CtxID:     m.CtxID,
		CtxName:   m.CtxName,
		Tag:       m.Tag,
		children:  htable.New[int, *ChildEdge](),
	}
}

// Tavg returns ttot/ncall, or 0 if ncall is 0.
func (e *Entry) Tavg() float64 {
	if e.NCall == 0 {
		return 0
	}
	return float64(e.TTot) / float64(e.NCall)
}

// ChildEdgeFor returns (and lazily creates) the edge from this entry to
// calleeIndex, preserving first-observed order for iteration. This is the
// dispatcher's entry point for updating caller->callee aggregates
// (spec.md §4.5 step 4).
func (e *Entry) ChildEdgeFor(calleeIndex int) *ChildEdge {
	if ce, ok := e.children.Get(calleeIndex); ok {
		return ce
	}
	ce := &ChildEdge{CalleeIndex: calleeIndex}
	e.children.Put(calleeIndex, ce)
	return ce
}

// Children returns the child edges in first-observed order.
func (e *Entry) Children() []*ChildEdge {
	return e.children.Values()
}

// ChildByIndex looks up a specific child edge.
func (e *Entry) ChildByIndex(calleeIndex int) (*ChildEdge, bool) {
	return e.children.Get(calleeIndex)
}
