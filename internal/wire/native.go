// Package wire serializes a stats.Store to and from the three
// presentation formats spec.md §6 names: vprof's own self-describing
// native format (msgpack), a callgrind-compatible text format, and a
// pstat-compatible JSON format readable by existing stats viewers.
package wire

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/viroprof/vprof/internal/stats"
	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/verror"
)

const nativeMagic = "VPRF"
const nativeVersion = 1

// nativeHeader identifies the stream before any entry data, so a reader
// can reject a bad magic or mismatched version up front rather than
// partway through decoding (spec.md §6's "self-describing" requirement).
// ReadNative accepts any clock mode; a mismatch is rejected by
// stats.Store.Merge when the decoded store is merged into another.
type nativeHeader struct {
	Magic     string `msgpack:"magic"`
	Version   int    `msgpack:"version"`
	ClockMode string `msgpack:"clock_mode"`
	RunID     string `msgpack:"run_id"`
}

type nativeEdge struct {
	CalleeIndex int   `msgpack:"callee_index"`
	NCall       int64 `msgpack:"ncall"`
	NActualCall int64 `msgpack:"nactualcall"`
	TTot        int64 `msgpack:"ttot"`
	TSub        int64 `msgpack:"tsub"`
}

type nativeEntry struct {
	FullName    string       `msgpack:"full_name"`
	Name        string       `msgpack:"name"`
	Module      string       `msgpack:"module"`
	Line        int          `msgpack:"lineno"`
	IsBuiltin   bool         `msgpack:"is_builtin"`
	Index       int          `msgpack:"index"`
	NCall       int64        `msgpack:"ncall"`
	NActualCall int64        `msgpack:"nactualcall"`
	TTot        int64        `msgpack:"ttot"`
	TSub        int64        `msgpack:"tsub"`
	CtxID       int64        `msgpack:"ctx_id"`
	CtxName     string       `msgpack:"ctx_name"`
	Tag         int64        `msgpack:"tag"`
	Children    []nativeEdge `msgpack:"children"`
}

// WriteNative encodes every entry in store as a self-describing msgpack
// stream: a header record followed by one record per StatsEntry.
func WriteNative(w io.Writer, store *stats.Store) error {
	mode, _ := store.ClockMode()
	enc := msgpack.NewEncoder(w)

	runID := store.RunID()
	if runID == "" {
		runID = uuid.New().String()
	}
	if err := enc.Encode(nativeHeader{Magic: nativeMagic, Version: nativeVersion, ClockMode: mode.String(), RunID: runID}); err != nil {
		return err
	}

	entries, err := store.Iterate(stats.Filter{}, "name", false)
	if err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(entries)); err != nil {
		return err
	}
	for _, e := range entries {
		children := e.Children()
		ne := nativeEntry{
			FullName: e.FullName, Name: e.Name, Module: e.Module, Line: e.Line,
			IsBuiltin: e.IsBuiltin, Index: e.Index,
			NCall: e.NCall, NActualCall: e.NActualCall, TTot: e.TTot, TSub: e.TSub,
			CtxID: e.CtxID, CtxName: e.CtxName, Tag: e.Tag,
			Children: make([]nativeEdge, 0, len(children)),
		}
		for _, c := range children {
			ne.Children = append(ne.Children, nativeEdge{
				CalleeIndex: c.CalleeIndex, NCall: c.NCall, NActualCall: c.NActualCall,
				TTot: c.TTot, TSub: c.TSub,
			})
		}
		if err := enc.Encode(ne); err != nil {
			return err
		}
	}
	return nil
}

// ReadNative decodes a stream written by WriteNative into a fresh Store.
// A magic/version mismatch surfaces as verror.DecodeError so callers can
// distinguish "not a vprof native file" from a generic I/O failure.
func ReadNative(r io.Reader) (*stats.Store, error) {
	dec := msgpack.NewDecoder(r)

	var hdr nativeHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, verror.NewDecodeError(verror.IDMalformedStream, [3]string{err.Error(), "", ""})
	}
	if hdr.Magic != nativeMagic {
		return nil, verror.NewDecodeError(verror.IDMalformedStream, [3]string{"bad magic: " + hdr.Magic, "", ""})
	}
	if hdr.Version != nativeVersion {
		return nil, verror.NewDecodeError(verror.IDVersionMismatch, [3]string{fmt.Sprint(nativeVersion), fmt.Sprint(hdr.Version), ""})
	}

	store := stats.New()
	mode, ok := vclock.ParseMode(hdr.ClockMode)
	if ok {
		store.SetClockMode(mode)
	}
	store.SetRunID(hdr.RunID)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, verror.NewDecodeError(verror.IDMalformedStream, [3]string{err.Error(), "", ""})
	}

	byIndex := make(map[int]*stats.Entry, n)
	pendingChildren := make(map[int][]nativeEdge, n)

	for i := 0; i < n; i++ {
		var ne nativeEntry
		if err := dec.Decode(&ne); err != nil {
			return nil, verror.NewDecodeError(verror.IDMalformedStream, [3]string{err.Error(), "", ""})
		}
		entry, _ := store.FindOrCreate(ne.FullName, stats.Meta{
			Name: ne.Name, Module: ne.Module, Line: ne.Line, IsBuiltin: ne.IsBuiltin,
			CtxID: ne.CtxID, CtxName: ne.CtxName, Tag: ne.Tag,
		})
		entry.NCall = ne.NCall
		entry.NActualCall = ne.NActualCall
		entry.TTot = ne.TTot
		entry.TSub = ne.TSub
		byIndex[ne.Index] = entry
		pendingChildren[ne.Index] = ne.Children
	}

	for srcIdx, children := range pendingChildren {
		src := byIndex[srcIdx]
		for _, c := range children {
			dst, ok := byIndex[c.CalleeIndex]
			if !ok {
				continue
			}
			edge := src.ChildEdgeFor(dst.Index)
			edge.NCall = c.NCall
			edge.NActualCall = c.NActualCall
			edge.TTot = c.TTot
			edge.TSub = c.TSub
		}
	}

	return store, nil
}
