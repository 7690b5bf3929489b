// Package fullscreen owns the single enlarged inspection view: opening an
// asset, navigating to the previous or next asset of the same kind in the
// filtered view, and closing back to the grid.
package fullscreen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/preview"
	"github.com/justyntemme/assetgrid/internal/view"
)

// ErrNotExpandable is returned by Open for kinds without a fullscreen view.
var ErrNotExpandable = errors.New("fullscreen: kind has no fullscreen view")

// Direction selects the navigation target.
type Direction int

const (
	Prev Direction = iota
	Next
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// VideoStopper is notified when the overlay closes so grid previews can be
// returned to their first frame.
type VideoStopper interface {
	StopVideos()
}

// Info is the data of the fullscreen info panel.
type Info struct {
	Name     string
	Kind     catalog.Kind
	Size     string
	Modified string
	Path     string
}

// Controller is the fullscreen state machine: Closed, or Open on exactly
// one record with at most one live resource.
type Controller struct {
	ctx     context.Context
	env     *preview.Env
	surface engine.Surface
	keys    *config.HotkeyMatcher
	grid    VideoStopper

	mu      sync.Mutex
	open    bool
	current catalog.Record
	res     preview.Resource
	loadErr error
}

// New returns a closed controller drawing on surface. grid may be nil.
func New(ctx context.Context, env *preview.Env, surface engine.Surface, keys *config.HotkeyMatcher, grid VideoStopper) *Controller {
	if keys == nil {
		keys = config.NewHotkeyMatcher(config.DefaultHotkeys())
	}
	return &Controller{ctx: ctx, env: env, surface: surface, keys: keys, grid: grid}
}

// Expandable reports whether k has a fullscreen view.
func Expandable(k catalog.Kind) bool {
	return k != catalog.Audio && k != catalog.Unsupported
}

// Open shows rec, disposing whatever was open before. A load failure keeps
// the overlay open with an inline error and is returned wrapped in a
// *preview.LoadError.
func (c *Controller) Open(rec catalog.Record) error {
	if !Expandable(rec.Kind) {
		return fmt.Errorf("%w: %s", ErrNotExpandable, rec.Name)
	}

	c.mu.Lock()
	prev := c.res
	c.res = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}

	res, err := preview.New(c.env, rec, c.surface, preview.Options{
		Fullscreen: true,
		OnError:    func(err error) { c.loadFailed(rec.ID, err) },
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.open = true
	c.current = rec
	c.res = res
	c.loadErr = nil
	c.mu.Unlock()

	debug.Log(debug.FULLSCREEN, "open %s (%s)", rec.Name, rec.Kind)
	if err := res.Attach(c.ctx); err != nil {
		c.loadFailed(rec.ID, err)
		return err
	}
	return nil
}

// Close disposes the open resource and stops grid preview videos. Closing a
// closed controller does nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	res := c.res
	name := c.current.Name
	c.open = false
	c.res = nil
	c.current = catalog.Record{}
	c.loadErr = nil
	c.mu.Unlock()

	if res != nil {
		res.Dispose()
	}
	c.surface.Clear()
	if c.grid != nil {
		c.grid.StopVideos()
	}
	debug.Log(debug.FULLSCREEN, "close %s", name)
}

// Navigate moves to the nearest record of the open kind in direction d
// within res. It reports whether anything changed. Reaching either end of
// the view, or the open record no longer being in it, leaves the overlay
// unchanged.
func (c *Controller) Navigate(d Direction, res view.Result) bool {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false
	}
	cur := c.current
	c.mu.Unlock()

	i := res.IndexOf(cur.ID)
	if i < 0 {
		debug.Log(debug.FULLSCREEN, "navigate %s: %s not in view", d, cur.Name)
		return false
	}
	step := 1
	if d == Prev {
		step = -1
	}
	for j := i + step; j >= 0 && j < len(res.Items); j += step {
		if res.Items[j].Kind != cur.Kind {
			continue
		}
		// Errors are already shown inline on the surface.
		_ = c.Open(res.Items[j])
		return true
	}
	debug.Log(debug.FULLSCREEN, "navigate %s: boundary at %s", d, cur.Name)
	return false
}

// HandleKey applies the configured fullscreen shortcuts and reports whether
// ev was consumed. Keys are ignored while closed.
func (c *Controller) HandleKey(ev engine.Event, res view.Result) bool {
	if !c.IsOpen() {
		return false
	}
	mods := Modifiers(ev)
	switch {
	case c.keys.Close.Matches(ev.Key, mods):
		c.Close()
		return true
	case c.keys.Prev.Matches(ev.Key, mods):
		c.Navigate(Prev, res)
		return true
	case c.keys.Next.Matches(ev.Key, mods):
		c.Navigate(Next, res)
		return true
	case c.keys.PlayPause.Matches(ev.Key, mods):
		c.mu.Lock()
		player, ok := c.res.(preview.Player)
		isVideo := c.current.Kind == catalog.Video
		c.mu.Unlock()
		if ok && isVideo {
			player.TogglePlay()
		}
		return true
	}
	return false
}

// HandleBackdropClick closes the overlay.
func (c *Controller) HandleBackdropClick() {
	c.Close()
}

// IsOpen reports whether an asset is shown.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Current returns the open record.
func (c *Controller) Current() (catalog.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.open
}

// Err returns the load failure of the open asset, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Info returns the info panel of the open asset.
func (c *Controller) Info() (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return Info{}, false
	}
	r := c.current
	p := r.Path()
	if p == "" {
		p = r.RelPath
	}
	return Info{
		Name:     r.Name,
		Kind:     r.Kind,
		Size:     view.FormatSize(r.Size),
		Modified: view.FormatModified(r.ModTime),
		Path:     p,
	}, true
}

// Modifiers converts the modifier flags of ev.
func Modifiers(ev engine.Event) config.Modifiers {
	var m config.Modifiers
	if ev.Ctrl {
		m |= config.ModCtrl
	}
	if ev.Shift {
		m |= config.ModShift
	}
	if ev.Alt {
		m |= config.ModAlt
	}
	if ev.Meta {
		m |= config.ModMeta
	}
	return m
}

func (c *Controller) loadFailed(id uuid.UUID, err error) {
	c.mu.Lock()
	if !c.open || c.current.ID != id {
		c.mu.Unlock()
		return
	}
	c.loadErr = err
	name := c.current.Name
	c.mu.Unlock()
	logging.L().Warn("fullscreen: load failed", zap.String("name", name), zap.Error(err))
}
