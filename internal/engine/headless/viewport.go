package headless

import (
	"sync"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// Viewport is a VisibilityObserver over a vertically scrolling view. An
// element is visible when at least Threshold of its height lies within the
// viewport grown by Margin on each side.
type Viewport struct {
	Height    float64
	Margin    float64
	Threshold float64

	mu       sync.Mutex
	scroll   float64
	watching map[engine.Element]*watch
	order    []engine.Element
}

type watch struct {
	fn      func(bool)
	visible bool
}

// NewViewport returns a viewport of the given height with the gallery's
// defaults: a 50 pixel margin and a 0.1 threshold.
func NewViewport(height float64) *Viewport {
	return &Viewport{
		Height:    height,
		Margin:    50,
		Threshold: 0.1,
		watching:  make(map[engine.Element]*watch),
	}
}

// Observe starts watching el. fn runs immediately when el is already
// visible.
func (v *Viewport) Observe(el engine.Element, fn func(bool)) {
	v.mu.Lock()
	if _, ok := v.watching[el]; !ok {
		v.order = append(v.order, el)
	}
	w := &watch{fn: fn}
	v.watching[el] = w
	visible := v.visibleLocked(el.Rect())
	w.visible = visible
	v.mu.Unlock()
	if visible {
		fn(true)
	}
}

func (v *Viewport) Unobserve(el engine.Element) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.watching[el]; !ok {
		return
	}
	delete(v.watching, el)
	for i, o := range v.order {
		if o == el {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// ScrollTo moves the top of the viewport to y and reports every element
// whose visibility changed.
func (v *Viewport) ScrollTo(y float64) {
	v.mu.Lock()
	v.scroll = y
	type change struct {
		fn      func(bool)
		visible bool
	}
	var changes []change
	for _, el := range v.order {
		w := v.watching[el]
		now := v.visibleLocked(el.Rect())
		if now != w.visible {
			w.visible = now
			changes = append(changes, change{w.fn, now})
		}
	}
	v.mu.Unlock()
	for _, c := range changes {
		c.fn(c.visible)
	}
}

// Observed returns the number of watched elements.
func (v *Viewport) Observed() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watching)
}

// --- Internal methods (must be called with lock held) ---

func (v *Viewport) visibleLocked(r engine.Rect) bool {
	top := v.scroll - v.Margin
	bottom := v.scroll + v.Height + v.Margin
	if r.Height <= 0 {
		return r.Top >= top && r.Top <= bottom
	}
	overlap := min(bottom, r.Top+r.Height) - max(top, r.Top)
	if overlap <= 0 {
		return false
	}
	return overlap/r.Height >= v.Threshold
}
