package app

import "github.com/justyntemme/assetgrid/internal/engine"

// Layout places grid tiles row by row.
type Layout struct {
	Columns    int
	TileWidth  int
	TileHeight int
	Gap        int
}

// DefaultLayout matches the default tile size and column count.
var DefaultLayout = Layout{Columns: 5, TileWidth: 200, TileHeight: 180, Gap: 10}

// TileSize returns the size of one tile.
func (l Layout) TileSize() engine.Size {
	return engine.Size{Width: l.TileWidth, Height: l.TileHeight}
}

// Rect returns the position of the i-th tile of a page.
func (l Layout) Rect(i int) engine.Rect {
	cols := l.Columns
	if cols <= 0 {
		cols = 1
	}
	row, col := i/cols, i%cols
	return engine.Rect{
		Left:   float64(col * (l.TileWidth + l.Gap)),
		Top:    float64(row * (l.TileHeight + l.Gap)),
		Width:  float64(l.TileWidth),
		Height: float64(l.TileHeight),
	}
}
