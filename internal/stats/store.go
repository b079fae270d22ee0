package stats

import (
	"sort"
	"strings"
	"sync"

	"github.com/viroprof/vprof/internal/htable"
	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/verror"
)

// Store is the function-stat table and its embedded child tables
// (spec.md §4.6). A Store is safe for concurrent use; internal/profiler
// is responsible for acquiring its own ContextRegistry lock strictly
// before touching a Store, per spec.md §5's ordering rule.
type Store struct {
	mu         sync.Mutex
	byName     *htable.Table[string, *Entry]
	byIndex    *htable.Table[int, *Entry]
	nextIndex  int
	clockMode  vclock.Mode
	modeSet    bool
	runID      string
}

// New creates an empty Store. Entry indexes start at 1.
func New() *Store {
	return &Store{
		byName:    htable.New[string, *Entry](),
		byIndex:   htable.New[int, *Entry](),
		nextIndex: 1,
	}
}

// ClockMode returns the store's clock mode and whether one has been set
// yet (a fresh, never-merged-into, never-loaded-into store has none).
func (s *Store) ClockMode() (vclock.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockMode, s.modeSet
}

// SetClockMode pins the store's clock mode. Safe to call repeatedly with
// the same mode; internal/profiler enforces the "only while empty and not
// running" rule (IDClockModeLocked) before calling this on a mode change.
func (s *Store) SetClockMode(mode vclock.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockMode = mode
	s.modeSet = true
}

// RunID returns the correlation id of the saved snapshot this store was
// last loaded from, or "" for a store that was never loaded from one
// (e.g. the profiler's live, in-memory store).
func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// SetRunID records the correlation id of a loaded snapshot.
func (s *Store) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

// Len returns the number of distinct functions observed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byName.Len()
}

// FindOrCreate resolves the Entry for fullName, creating one with the
// given metadata (captured only at first observation, per spec.md §3's
// ctx_id/ctx_name/tag fields) if absent. Returns (entry, created).
func (s *Store) FindOrCreate(fullName string, m Meta) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byName.Get(fullName); ok {
		return e, false
	}

	idx := s.nextIndex
	s.nextIndex++
	e := newEntry(idx, fullName, m)
	s.byName.Put(fullName, e)
	s.byIndex.Put(idx, e)
	return e, true
}

// GetByIndex looks up an entry by its dense integer index.
func (s *Store) GetByIndex(index int) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byIndex.Get(index)
}

// GetByFullName looks up an entry by its canonical full name.
func (s *Store) GetByFullName(name string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byName.Get(name)
}

// Clear discards all entries and resets index allocation. Clock mode is
// preserved (a cleared store is still "the same session" w.r.t. mode).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName = htable.New[string, *Entry]()
	s.byIndex = htable.New[int, *Entry]()
	s.nextIndex = 1
}

// Filter selects a conjunctive set of predicates over Entry (spec.md
// §4.6). A nil/zero field is not applied. Custom, if set, is ANDed with
// the rest.
type Filter struct {
	Name      string
	Module    string
	CtxID     *int64
	CtxName   string
	Tag       *int64
	MinTTot   int64
	MinTSub   int64
	MinNCall  int64
	Custom    func(*Entry) bool
}

func (f Filter) matches(e *Entry) bool {
	if f.Name != "" && e.Name != f.Name {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.CtxID != nil && e.CtxID != *f.CtxID {
		return false
	}
	if f.CtxName != "" && e.CtxName != f.CtxName {
		return false
	}
	if f.Tag != nil && e.Tag != *f.Tag {
		return false
	}
	if e.TTot < f.MinTTot {
		return false
	}
	if e.TSub < f.MinTSub {
		return false
	}
	if e.NCall < f.MinNCall {
		return false
	}
	if f.Custom != nil && !f.Custom(e) {
		return false
	}
	return true
}

// ValidSortKeys enumerates the sort keys spec.md §4.6 recognizes.
var ValidSortKeys = map[string]bool{
	"name": true, "ncall": true, "ttot": true, "tsub": true, "tavg": true,
}

// Iterate returns entries passing filter, sorted by sortKey in the given
// order. sortKey must be one of ValidSortKeys; an unrecognized key raises
// verror.InvalidArgument (recovering yappi's _validate_sorttype check).
func (s *Store) Iterate(filter Filter, sortKey string, descending bool) ([]*Entry, error) {
	if sortKey == "" {
		sortKey = "ttot"
	}
	if !ValidSortKeys[sortKey] {
		keys := make([]string, 0, len(ValidSortKeys))
		for k := range ValidSortKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, verror.NewInvalidArgument(verror.IDBadSortKey, [3]string{sortKey, strings.Join(keys, ", "), ""})
	}

	s.mu.Lock()
	all := s.byName.Values()
	s.mu.Unlock()

	out := make([]*Entry, 0, len(all))
	for _, e := range all {
		if filter.matches(e) {
			out = append(out, e)
		}
	}

	ascending := func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortKey {
		case "name":
			return strings.ToLower(a.FullName) < strings.ToLower(b.FullName)
		case "ncall":
			return a.NCall < b.NCall
		case "ttot":
			return a.TTot < b.TTot
		case "tsub":
			return a.TSub < b.TSub
		case "tavg":
			return a.Tavg() < b.Tavg()
		default:
			return false
		}
	}
	if descending {
		sort.SliceStable(out, func(i, j int) bool { return ascending(j, i) })
	} else {
		sort.SliceStable(out, ascending)
	}
	return out, nil
}
