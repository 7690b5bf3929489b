package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/metrics"
)

// Tile binds a record to the surface it is shown on.
type Tile struct {
	Record  catalog.Record
	Surface engine.Surface
}

// Stats counts the manager's tiles.
type Stats struct {
	Observed int // tiles on the current page
	Active   int // tiles with an attached resource
	Failed   int // tiles whose load failed
}

type slot struct {
	tile   Tile
	res    Resource
	failed bool
}

// Manager attaches a resource to each tile while it is within the
// visibility margin and disposes it on every exit path: scrolling out, page
// change, catalog reset and teardown. A tile holds at most one resource.
// A failed tile keeps its inline error and is not retried.
type Manager struct {
	ctx      context.Context
	env      *Env
	observer engine.VisibilityObserver

	mu     sync.Mutex
	slots  map[uuid.UUID]*slot
	closed bool
}

// NewManager returns a manager. ctx bounds every asynchronous load.
func NewManager(ctx context.Context, env *Env, observer engine.VisibilityObserver) *Manager {
	return &Manager{
		ctx:      ctx,
		env:      env,
		observer: observer,
		slots:    make(map[uuid.UUID]*slot),
	}
}

// Sync makes tiles the current page. Tiles no longer present are disposed
// and unobserved; new tiles show a placeholder and are observed.
func (m *Manager) Sync(tiles []Tile) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	next := make(map[uuid.UUID]Tile, len(tiles))
	for _, t := range tiles {
		next[t.Record.ID] = t
	}

	var leaving []*slot
	for id, s := range m.slots {
		if t, ok := next[id]; ok && t.Surface == s.tile.Surface {
			continue
		}
		leaving = append(leaving, s)
		delete(m.slots, id)
	}

	var entering []*slot
	for _, t := range tiles {
		if _, ok := m.slots[t.Record.ID]; ok {
			continue
		}
		s := &slot{tile: t}
		m.slots[t.Record.ID] = s
		entering = append(entering, s)
	}
	m.mu.Unlock()

	for _, s := range leaving {
		m.release(s)
	}
	for _, s := range entering {
		s.tile.Surface.ShowPlaceholder(fmt.Sprintf("Loading %s...", s.tile.Record.Kind))
		m.observer.Observe(s.tile.Surface, func(visible bool) {
			m.visibility(s, visible)
		})
	}
	debug.Log(debug.PREVIEW, "sync: %d tiles, %d left, %d entered", len(tiles), len(leaving), len(entering))
	m.publish()
}

// visibility runs when s enters or leaves the margin.
func (m *Manager) visibility(s *slot, visible bool) {
	m.mu.Lock()
	if m.slots[s.tile.Record.ID] != s {
		m.mu.Unlock()
		return
	}
	if !visible {
		res := s.res
		s.res = nil
		m.mu.Unlock()
		if res != nil {
			res.Dispose()
			debug.Log(debug.PREVIEW, "%s: left viewport, disposed", s.tile.Record.Name)
			m.publish()
		}
		return
	}
	if s.res != nil || s.failed {
		m.mu.Unlock()
		return
	}

	var res Resource
	res, err := New(m.env, s.tile.Record, s.tile.Surface, Options{
		OnError: func(err error) { m.loadFailed(s, res, err) },
	})
	if err != nil {
		s.failed = true
		m.mu.Unlock()
		s.tile.Surface.ShowError(fmt.Sprintf("Error loading %s", s.tile.Record.Kind))
		m.publish()
		return
	}
	s.res = res
	m.mu.Unlock()

	if err := res.Attach(m.ctx); err != nil {
		if errors.Is(err, ErrDisposed) {
			return
		}
		m.loadFailed(s, res, err)
		return
	}
	metrics.RecordPreviewLoad(s.tile.Record.Kind.String(), true)
	debug.Log(debug.PREVIEW, "%s: attached", s.tile.Record.Name)
	m.publish()
}

// loadFailed marks s failed if res is still its resource.
func (m *Manager) loadFailed(s *slot, res Resource, err error) {
	m.mu.Lock()
	current := s.res == res
	if current {
		s.res = nil
		s.failed = true
	}
	m.mu.Unlock()
	if !current {
		return
	}
	res.Dispose()
	metrics.RecordPreviewLoad(s.tile.Record.Kind.String(), false)
	logging.L().Warn("preview load failed",
		zap.String("name", s.tile.Record.Name),
		zap.String("kind", s.tile.Record.Kind.String()),
		zap.Error(err),
	)
	m.publish()
}

func (m *Manager) release(s *slot) {
	m.observer.Unobserve(s.tile.Surface)
	m.mu.Lock()
	res := s.res
	s.res = nil
	m.mu.Unlock()
	if res != nil {
		res.Dispose()
	}
}

// Reset disposes every resource, forgets every tile and revokes every
// outstanding object URL. It is called when the catalog is invalidated.
func (m *Manager) Reset() {
	m.mu.Lock()
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.slots = make(map[uuid.UUID]*slot)
	m.mu.Unlock()

	for _, s := range slots {
		m.release(s)
	}
	revoked := m.env.URLs.RevokeAll()
	debug.Log(debug.PREVIEW, "reset: %d tiles released, %d urls revoked", len(slots), revoked)
	m.publish()
}

// Close tears the manager down. Later Sync calls are ignored.
func (m *Manager) Close() {
	m.Reset()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// StopVideos pauses and rewinds every attached preview video.
func (m *Manager) StopVideos() {
	m.mu.Lock()
	var stoppers []Stopper
	for _, s := range m.slots {
		if st, ok := s.res.(Stopper); ok {
			stoppers = append(stoppers, st)
		}
	}
	m.mu.Unlock()
	for _, st := range stoppers {
		st.Stop()
	}
}

// Stats returns the current counts.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Failed reports whether the tile for id failed to load.
func (m *Manager) Failed(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return ok && s.failed
}

// Active reports whether the tile for id has an attached resource.
func (m *Manager) Active(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return ok && s.res != nil
}

func (m *Manager) publish() {
	metrics.SetPreviewResources(m.Stats().Active)
}

// --- Internal methods (must be called with lock held) ---

func (m *Manager) statsLocked() Stats {
	st := Stats{Observed: len(m.slots)}
	for _, s := range m.slots {
		if s.res != nil {
			st.Active++
		}
		if s.failed {
			st.Failed++
		}
	}
	return st
}
