// Package view derives the filtered, sorted and paginated projection of the
// catalog and owns the user-controlled parameters that drive it.
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/justyntemme/assetgrid/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SortField selects the record attribute the view is ordered by.
type SortField int

const (
	SortByName SortField = iota
	SortBySize
	SortByKind
	SortByModified
)

func (f SortField) String() string {
	switch f {
	case SortBySize:
		return "size"
	case SortByKind:
		return "kind"
	case SortByModified:
		return "modified"
	}
	return "name"
}

// ParseSortField accepts name, size, kind (or type) and modified (or date).
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "":
		return SortByName, nil
	case "size":
		return SortBySize, nil
	case "kind", "type":
		return SortByKind, nil
	case "modified", "date":
		return SortByModified, nil
	}
	return SortByName, fmt.Errorf("unknown sort field %q", s)
}

// Direction is the sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts asc and desc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "":
		return Ascending, nil
	case "desc":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown sort direction %q", s)
}

// Query is the part of the view state the filtered sequence depends on.
type Query struct {
	Kinds     map[catalog.Kind]bool
	Search    string
	Field     SortField
	Direction Direction
}

// Filter returns the records that pass the kind filter and every search
// term, sorted by the query's field and direction. It is a pure function:
// identical inputs give an identical sequence. records must be in ingestion
// (name) order, which breaks ties.
func Filter(records []catalog.Record, q Query) []catalog.Record {
	terms := strings.Fields(fold(q.Search))

	out := make([]catalog.Record, 0, len(records))
	for _, r := range records {
		if !q.Kinds[r.Kind] {
			continue
		}
		if len(terms) > 0 && !matchesAll(r, terms) {
			continue
		}
		out = append(out, r)
	}

	sortRecords(out, q.Field, q.Direction)
	return out
}

// Haystack returns the text search terms are matched against.
func Haystack(r catalog.Record) string {
	return r.Name + " " + r.Kind.String() + " " + r.Path()
}

func matchesAll(r catalog.Record, terms []string) bool {
	hay := fold(Haystack(r))
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func sortRecords(records []catalog.Record, field SortField, dir Direction) {
	var cmp func(a, b *catalog.Record) int
	switch field {
	case SortBySize:
		cmp = func(a, b *catalog.Record) int {
			switch {
			case a.Size < b.Size:
				return -1
			case a.Size > b.Size:
				return 1
			}
			return 0
		}
	case SortByKind:
		cmp = func(a, b *catalog.Record) int {
			return strings.Compare(a.Kind.String(), b.Kind.String())
		}
	case SortByModified:
		cmp = func(a, b *catalog.Record) int {
			return a.ModTime.Compare(b.ModTime)
		}
	default:
		coll := catalog.NewNameCollator()
		cmp = func(a, b *catalog.Record) int {
			return coll.Compare(a.Name, b.Name)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		c := cmp(&records[i], &records[j])
		if dir == Descending {
			c = -c
		}
		return c < 0
	})
}

// Result is one computed projection: the full filtered sequence plus the
// pagination applied to it.
type Result struct {
	Items     []catalog.Record
	PageSize  int
	PageIndex int
}

// Total is the number of filtered items.
func (r Result) Total() int { return len(r.Items) }

// PageCount is ceil(Total/PageSize), at least 1.
func (r Result) PageCount() int {
	return pageCount(len(r.Items), r.PageSize)
}

// Page returns the items of the current page.
func (r Result) Page() []catalog.Record {
	start := r.PageIndex * r.PageSize
	if start >= len(r.Items) {
		return nil
	}
	end := start + r.PageSize
	if end > len(r.Items) {
		end = len(r.Items)
	}
	return r.Items[start:end]
}

// IndexOf returns the position of id in the filtered sequence, or -1.
func (r Result) IndexOf(id uuid.UUID) int {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func pageCount(n, size int) int {
	if size <= 0 || n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func clampPage(page, n, size int) int {
	last := pageCount(n, size) - 1
	if page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Recompute is the pure projection of records under snap: the filtered
// sequence and the page index clamped to it.
func Recompute(records []catalog.Record, snap Snapshot) Result {
	items := Filter(records, Query{
		Kinds:     snap.Kinds,
		Search:    snap.Search,
		Field:     snap.Field,
		Direction: snap.Direction,
	})
	return Result{
		Items:     items,
		PageSize:  snap.PageSize,
		PageIndex: clampPage(snap.Page, len(items), snap.PageSize),
	}
}
