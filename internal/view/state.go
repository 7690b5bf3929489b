package view

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/debug"
)

// DefaultPageSize is the initial number of tiles per page.
const DefaultPageSize = 20

// PageSizeOptions are the sizes the page-size menu offers.
var PageSizeOptions = []int{20, 50, 100, 150}

// ErrInvalidPageSize is returned by SetPageSize for non-positive sizes.
var ErrInvalidPageSize = errors.New("view: page size must be positive")

// State is the single owner of the view parameters and the selection.
// Every mutation goes through a method that recomputes the filtered
// sequence and clamps the page index, so callers never see an out-of-range
// page.
type State struct {
	mu sync.RWMutex

	records  []catalog.Record
	kinds    map[catalog.Kind]bool
	search   string
	field    SortField
	dir      Direction
	pageSize int
	page     int
	selected map[uuid.UUID]bool

	// filtered is recomputed on every mutation that can change it
	filtered []catalog.Record
}

// Snapshot is an immutable copy of the parameters for rendering.
type Snapshot struct {
	Kinds     map[catalog.Kind]bool
	Search    string
	Field     SortField
	Direction Direction
	PageSize  int
	Page      int
	Selected  map[uuid.UUID]bool
}

// NewState returns a state with every supported kind active, name-ascending
// order and the default page size.
func NewState() *State {
	return &State{
		kinds:    allKinds(),
		pageSize: DefaultPageSize,
		selected: make(map[uuid.UUID]bool),
	}
}

func allKinds() map[catalog.Kind]bool {
	m := make(map[catalog.Kind]bool, len(catalog.Supported))
	for _, k := range catalog.Supported {
		m[k] = true
	}
	return m
}

// Load installs a freshly ingested record set: the page returns to 0 and the
// selection is cleared. Filters, search and sort are kept.
func (s *State) Load(records []catalog.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.page = 0
	s.selected = make(map[uuid.UUID]bool)
	s.rebuildLocked()
	debug.Log(debug.VIEW, "Load: %d records, %d visible", len(records), len(s.filtered))
}

// Reset restores every parameter to its default and clears the selection.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = allKinds()
	s.search = ""
	s.field = SortByName
	s.dir = Ascending
	s.pageSize = DefaultPageSize
	s.page = 0
	s.selected = make(map[uuid.UUID]bool)
	s.rebuildLocked()
}

// SetKinds replaces the active kind filter.
func (s *State) SetKinds(kinds []catalog.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[catalog.Kind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	s.kinds = m
	s.refilterLocked()
}

// ToggleKind flips one kind in the filter and reports whether it is now
// active.
func (s *State) ToggleKind(k catalog.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[catalog.Kind]bool, len(s.kinds)+1)
	for kk, v := range s.kinds {
		m[kk] = v
	}
	m[k] = !m[k]
	if !m[k] {
		delete(m, k)
	}
	s.kinds = m
	s.refilterLocked()
	return s.kinds[k]
}

// SetSearch sets the free-text search term.
func (s *State) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = term
	s.refilterLocked()
}

// SetSort sets the sort field and direction. Changing the field returns to
// the first page.
func (s *State) SetSort(field SortField, dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field != s.field {
		s.page = 0
	}
	s.field = field
	s.dir = dir
	s.rebuildLocked()
}

// ToggleDirection flips the sort direction and returns the new one.
func (s *State) ToggleDirection() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == Ascending {
		s.dir = Descending
	} else {
		s.dir = Ascending
	}
	s.rebuildLocked()
	return s.dir
}

// SetPageSize sets the number of tiles per page and returns to the first
// page.
func (s *State) SetPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
	s.page = 0
	return nil
}

// SetPage moves to page i, clamped into range.
func (s *State) SetPage(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = clampPage(i, len(s.filtered), s.pageSize)
	return s.page
}

// NextPage advances one page if possible and returns the page index.
func (s *State) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = clampPage(s.page+1, len(s.filtered), s.pageSize)
	return s.page
}

// PrevPage goes back one page if possible and returns the page index.
func (s *State) PrevPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = clampPage(s.page-1, len(s.filtered), s.pageSize)
	return s.page
}

// ToggleSelected flips the selection of id and reports whether it is now
// selected.
func (s *State) ToggleSelected(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected[id] {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = true
	return true
}

// SelectAll adds every record of the filtered sequence to the selection.
func (s *State) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.filtered {
		s.selected[r.ID] = true
	}
}

// ClearSelection empties the selection.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[uuid.UUID]bool)
}

// IsSelected reports whether id is selected.
func (s *State) IsSelected(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[id]
}

// SelectedRecords returns the selected records in ingestion order,
// including selected records hidden by the current filter.
func (s *State) SelectedRecords() []catalog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Record
	for _, r := range s.records {
		if s.selected[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the current projection.
func (s *State) Result() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Result{Items: s.filtered, PageSize: s.pageSize, PageIndex: s.page}
}

// Query returns the parameters the filtered sequence depends on.
func (s *State) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked()
}

// Snapshot returns a copy of all parameters.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.queryLocked()
	sel := make(map[uuid.UUID]bool, len(s.selected))
	for k, v := range s.selected {
		sel[k] = v
	}
	return Snapshot{
		Kinds:     q.Kinds,
		Search:    q.Search,
		Field:     q.Field,
		Direction: q.Direction,
		PageSize:  s.pageSize,
		Page:      s.page,
		Selected:  sel,
	}
}

// --- Internal methods (must be called with lock held) ---

func (s *State) queryLocked() Query {
	kinds := make(map[catalog.Kind]bool, len(s.kinds))
	for k, v := range s.kinds {
		kinds[k] = v
	}
	return Query{Kinds: kinds, Search: s.search, Field: s.field, Direction: s.dir}
}

func (s *State) rebuildLocked() {
	s.filtered = Filter(s.records, Query{Kinds: s.kinds, Search: s.search, Field: s.field, Direction: s.dir})
	s.page = clampPage(s.page, len(s.filtered), s.pageSize)
}

// refilterLocked rebuilds after a filter or search change. A change in the
// visible count returns to the first page.
func (s *State) refilterLocked() {
	before := len(s.filtered)
	s.rebuildLocked()
	if len(s.filtered) != before {
		s.page = 0
	}
	debug.Log(debug.VIEW, "refilter: %d -> %d items, page %d", before, len(s.filtered), s.page)
}
