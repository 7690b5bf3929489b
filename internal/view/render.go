package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/justyntemme/assetgrid/internal/catalog"
)

// TimeLayout formats tile modification times.
const TimeLayout = "2006-01-02 15:04"

// Tile describes one grid cell.
type Tile struct {
	ID       uuid.UUID
	Index    int // position in the filtered sequence
	Name     string
	Kind     catalog.Kind
	Size     string
	Modified string
	Path     string
	Selected bool
	// Expandable is set for kinds the fullscreen view can show.
	Expandable bool
}

// PageDescription is everything the presentation layer needs to draw the
// grid. It carries no behavior.
type PageDescription struct {
	Tiles          []Tile
	PageIndex      int
	PageCount      int
	PageLabel      string
	HasPrev        bool
	HasNext        bool
	Total          int
	SelectedCount  int
	SelectionLabel string
	Empty          bool
}

// Render describes the current page of res. selected reports whether a
// record is selected; selectedCount is the size of the whole selection,
// including records outside the filtered view.
func Render(res Result, selected func(uuid.UUID) bool, selectedCount int) PageDescription {
	page := res.Page()
	offset := res.PageIndex * res.PageSize
	tiles := make([]Tile, len(page))
	for i, r := range page {
		tiles[i] = Tile{
			ID:         r.ID,
			Index:      offset + i,
			Name:       r.Name,
			Kind:       r.Kind,
			Size:       FormatSize(r.Size),
			Modified:   FormatModified(r.ModTime),
			Path:       r.Path(),
			Selected:   selected != nil && selected(r.ID),
			Expandable: r.Kind != catalog.Audio && r.Kind != catalog.Unsupported,
		}
	}

	count := res.PageCount()
	return PageDescription{
		Tiles:          tiles,
		PageIndex:      res.PageIndex,
		PageCount:      count,
		PageLabel:      fmt.Sprintf("Page %d of %d", res.PageIndex+1, count),
		HasPrev:        res.PageIndex > 0,
		HasNext:        res.PageIndex < count-1,
		Total:          res.Total(),
		SelectedCount:  selectedCount,
		SelectionLabel: fmt.Sprintf("%d Selected", selectedCount),
		Empty:          res.Total() == 0,
	}
}

// Describe renders the state's current page.
func (s *State) Describe() PageDescription {
	res := s.Result()
	s.mu.RLock()
	sel := make(map[uuid.UUID]bool, len(s.selected))
	for k := range s.selected {
		sel[k] = true
	}
	s.mu.RUnlock()
	return Render(res, func(id uuid.UUID) bool { return sel[id] }, len(sel))
}

// FormatSize renders a byte count with binary units.
func FormatSize(n uint64) string {
	return humanize.IBytes(n)
}

// FormatModified renders a modification time, or "" for the zero time.
func FormatModified(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}
