package stats

import "github.com/viroprof/vprof/internal/verror"

// Merge folds other's entries into s (spec.md §4.6). Pre-check: both
// stores must share the same clock mode (once set), else
// verror.ClockModeMismatch. Indexes of pre-existing entries in s are
// never modified; only entries imported from other receive fresh indexes
// in s, and their child edges are remapped to those fresh indexes (or to
// the index of an already-matching full_name in s).
func (s *Store) Merge(other *Store) error {
	sMode, sSet := s.ClockMode()
	oMode, oSet := other.ClockMode()
	if sSet && oSet && sMode != oMode {
		return verror.NewClockModeMismatch(verror.IDClockModeMismatch, [3]string{sMode.String(), oMode.String(), ""})
	}
	if !sSet && oSet {
		s.SetClockMode(oMode)
	}

	other.mu.Lock()
	otherEntries := other.byName.Values()
	other.mu.Unlock()

	// Pass 1: ensure every full_name from other exists in s, building the
	// old-index -> new-index remap table. Pre-existing entries in s keep
	// their index (I5); newly imported ones get a fresh index in s.
	remap := make(map[int]int, len(otherEntries))
	for _, oe := range otherEntries {
		se, created := s.FindOrCreate(oe.FullName, Meta{
			Name: oe.Name, Module: oe.Module, Line: oe.Line, IsBuiltin: oe.IsBuiltin,
			CtxID: oe.CtxID, CtxName: oe.CtxName, Tag: oe.Tag,
		})
		remap[oe.Index] = se.Index

		if created {
			se.NCall = oe.NCall
			se.NActualCall = oe.NActualCall
			se.TTot = oe.TTot
			se.TSub = oe.TSub
		} else {
			se.NCall += oe.NCall
			se.NActualCall += oe.NActualCall
			se.TTot += oe.TTot
			se.TSub += oe.TSub
		}
	}

	// Pass 2: remap and fold in child edges, now that every callee full
	// name is guaranteed to have a entry (and therefore an index) in s.
	for _, oe := range otherEntries {
		se, _ := s.byName.Get(oe.FullName)
		for _, oce := range oe.Children() {
			newCalleeIdx, ok := remap[oce.CalleeIndex]
			if !ok {
				continue
			}
			sce := se.ChildEdgeFor(newCalleeIdx)
			sce.NCall += oce.NCall
			sce.NActualCall += oce.NActualCall
			sce.TTot += oce.TTot
			sce.TSub += oce.TSub
		}
	}

	return nil
}
