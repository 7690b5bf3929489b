// Package app wires the catalog, view state, preview lifecycle and
// fullscreen controller into one gallery driven by a single event loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/fullscreen"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/metrics"
	"github.com/justyntemme/assetgrid/internal/preview"
	"github.com/justyntemme/assetgrid/internal/store"
	"github.com/justyntemme/assetgrid/internal/view"
)

var (
	// ErrPickInProgress is returned when a pick or reload is requested
	// while another is pending. It is never shown to the user.
	ErrPickInProgress = errors.New("app: directory selection already in progress")
	// ErrNoDirectory is returned by Reload before any directory was opened.
	ErrNoDirectory = errors.New("app: no directory opened yet")
	// ErrUnknownAsset is returned for IDs not in the catalog.
	ErrUnknownAsset = errors.New("app: unknown asset")
	// ErrNoSupportedFiles is returned by Drop when nothing can be shown.
	ErrNoSupportedFiles = errors.New("app: no supported files")
	// ErrClosed is returned by ingestion requests after Close.
	ErrClosed = errors.New("app: gallery closed")
)

// NoSupportedFilesMessage is shown when a drop contains nothing
// classifiable.
const NoSupportedFilesMessage = "No supported files found. Please drop GLB, FBX, video, audio, or image files."

// SurfaceFactory creates the mount point of one grid tile at rect.
type SurfaceFactory func(size engine.Size, rect engine.Rect) engine.Surface

// Deps are the collaborators a gallery drives.
type Deps struct {
	Picker     host.Picker
	Doc        engine.Document
	Scene      engine.SceneEngine
	Frames     engine.FrameScheduler
	Observer   engine.VisibilityObserver
	NewSurface SurfaceFactory
	Fullscreen engine.Surface
	Notifier   Notifier
	Keys       *config.HotkeyMatcher
	// Store is optional. The gallery takes over its request loop and
	// records opened directories there.
	Store *store.DB
}

// Options tune a gallery.
type Options struct {
	Depth     catalog.Depth
	PageSize  int
	Sort      view.SortField
	Direction view.Direction
	Layout    Layout
	// Watch rescans the opened directory when it changes on disk.
	Watch    bool
	Debounce time.Duration
	// ExportDir receives archives written by the export shortcut.
	ExportDir string
	// OnRender is called on the event loop after every render.
	OnRender func(view.PageDescription)
}

type placed struct {
	surface engine.Surface
	rect    engine.Rect
}

// Gallery is the orchestrator. Exported methods may be called from any
// goroutine except the event loop itself; they hand their work to the loop
// and wait for it.
type Gallery struct {
	loop   *Loop
	deps   Deps
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	scanner  *Scanner
	catalog  *catalog.Catalog
	state    *view.State
	env      *preview.Env
	previews *preview.Manager
	full     *fullscreen.Controller

	picking atomic.Bool
	gen     atomic.Int64

	waitMu  sync.Mutex
	waiters map[int64]chan error

	// scanMu guards sends on the scanner queue against Close.
	scanMu     sync.Mutex
	scanClosed bool

	// Owned by the event loop.
	lastDir  host.Directory
	tiles    map[uuid.UUID]placed
	desc     view.PageDescription
	report   *catalog.ScanReport
	recent   []string
	watcher  *DirectoryWatcher
	exported string

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewGallery builds a gallery on loop. Call Start before use.
func NewGallery(ctx context.Context, loop *Loop, deps Deps, opts Options) *Gallery {
	if deps.Keys == nil {
		deps.Keys = config.NewHotkeyMatcher(config.DefaultHotkeys())
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifyFunc(func(string) {})
	}
	if opts.Layout.Columns == 0 {
		opts.Layout = DefaultLayout
	}

	ctx, cancel := context.WithCancel(ctx)
	env := &preview.Env{
		Doc:      deps.Doc,
		Scene:    deps.Scene,
		Frames:   deps.Frames,
		Dispatch: loop,
		Audio:    preview.NewAudioGroup(),
		URLs:     preview.NewURLTracker(deps.Doc),
	}
	previews := preview.NewManager(ctx, env, deps.Observer)

	state := view.NewState()
	if opts.PageSize > 0 {
		state.SetPageSize(opts.PageSize)
	}
	state.SetSort(opts.Sort, opts.Direction)

	return &Gallery{
		loop:     loop,
		deps:     deps,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		scanner:  NewScanner(),
		catalog:  catalog.New(),
		state:    state,
		env:      env,
		previews: previews,
		full:     fullscreen.New(ctx, env, deps.Fullscreen, deps.Keys, previews),
		waiters:  make(map[int64]chan error),
		tiles:    make(map[uuid.UUID]placed),
	}
}

// Start launches the scanner and store workers and renders the empty
// grid.
func (g *Gallery) Start() {
	go g.scanner.Start(g.ctx)
	g.wg.Add(1)
	go g.processScans()
	g.loop.Post(g.render)

	if g.deps.Store != nil {
		go g.deps.Store.Start()
		g.wg.Add(1)
		go g.processStore()
		g.deps.Store.RequestChan <- store.Request{Op: store.FetchRecent}
	}
}

// Pick asks the picker for a directory and ingests it. Dismissing the
// picker is not an error.
func (g *Gallery) Pick(ctx context.Context) error {
	if !g.picking.CompareAndSwap(false, true) {
		debug.Log(debug.APP, "Pick: picker already active")
		return ErrPickInProgress
	}
	defer g.picking.Store(false)

	var start host.Directory
	if err := g.loop.Do(func() { start = g.lastDir }); err != nil {
		return err
	}
	dir, err := g.deps.Picker.Pick(ctx, start)
	if errors.Is(err, host.ErrUserAbort) {
		debug.Log(debug.APP, "Pick: dismissed")
		return nil
	}
	if err != nil {
		g.fail("pick", err)
		return err
	}
	return g.ingest(ctx, dir)
}

// Reload re-ingests the last opened directory.
func (g *Gallery) Reload(ctx context.Context) error {
	if !g.picking.CompareAndSwap(false, true) {
		return ErrPickInProgress
	}
	defer g.picking.Store(false)

	var dir host.Directory
	if err := g.loop.Do(func() { dir = g.lastDir }); err != nil {
		return err
	}
	if dir == nil {
		return ErrNoDirectory
	}
	return g.ingest(ctx, dir)
}

// OpenDirectory ingests dir as if it had been picked.
func (g *Gallery) OpenDirectory(ctx context.Context, dir host.Directory) error {
	if !g.picking.CompareAndSwap(false, true) {
		return ErrPickInProgress
	}
	defer g.picking.Store(false)
	return g.ingest(ctx, dir)
}

// ingest hands dir to the scanner and waits until the result is applied.
func (g *Gallery) ingest(ctx context.Context, dir host.Directory) error {
	gen := g.gen.Add(1)
	wait := make(chan error, 1)
	g.waitMu.Lock()
	g.waiters[gen] = wait
	g.waitMu.Unlock()

	forget := func() {
		g.waitMu.Lock()
		delete(g.waiters, gen)
		g.waitMu.Unlock()
	}
	if err := g.requestScan(ctx, ScanRequest{Root: dir, Depth: g.opts.Depth, Gen: gen}, true); err != nil {
		forget()
		return err
	}
	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

// requestScan queues req. Without block it gives up when the queue is full.
func (g *Gallery) requestScan(ctx context.Context, req ScanRequest, block bool) error {
	g.scanMu.Lock()
	defer g.scanMu.Unlock()
	if g.scanClosed {
		return ErrClosed
	}
	if !block {
		select {
		case g.scanner.RequestChan <- req:
			return nil
		default:
			return ErrPickInProgress
		}
	}
	select {
	case g.scanner.RequestChan <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drop replaces the catalog with the supported files of a drop.
func (g *Gallery) Drop(ctx context.Context, files []host.File) error {
	supported := 0
	for _, f := range files {
		if catalog.Classify(f.Name()) != catalog.Unsupported {
			supported++
		}
	}
	if supported == 0 {
		debug.Log(debug.APP, "Drop: nothing supported in %d files", len(files))
		g.deps.Notifier.Notify(NoSupportedFilesMessage)
		return ErrNoSupportedFiles
	}

	return g.loop.Do(func() {
		g.invalidate()
		records := g.catalog.IngestFromFlatList(ctx, files)
		g.report = nil
		g.state.Load(records)
		metrics.SetCatalogRecords(len(records))
		debug.Log(debug.APP, "Drop: %d records", len(records))
		g.render()
	})
}

// Update applies fn to the view state and re-renders.
func (g *Gallery) Update(fn func(s *view.State) error) error {
	var err error
	if lerr := g.loop.Do(func() {
		if err = fn(g.state); err == nil {
			g.render()
		}
	}); lerr != nil {
		return lerr
	}
	return err
}

// Describe returns the last rendered page.
func (g *Gallery) Describe() view.PageDescription {
	var d view.PageDescription
	g.loop.Do(func() { d = g.desc })
	return d
}

// Result returns the current filtered view.
func (g *Gallery) Result() view.Result {
	var r view.Result
	g.loop.Do(func() { r = g.state.Result() })
	return r
}

// Report returns the report of the last tree scan, or nil.
func (g *Gallery) Report() *catalog.ScanReport {
	var r *catalog.ScanReport
	g.loop.Do(func() { r = g.report })
	return r
}

// Recent returns the recently opened directories known to the store.
func (g *Gallery) Recent() []string {
	var r []string
	g.loop.Do(func() { r = append(r, g.recent...) })
	return r
}

// PreviewStats returns the grid preview counts.
func (g *Gallery) PreviewStats() preview.Stats {
	return g.previews.Stats()
}

// Do runs fn on the event loop, for collaborators such as a viewport
// whose callbacks must fire there.
func (g *Gallery) Do(fn func()) error {
	return g.loop.Do(fn)
}

// OpenFullscreen shows the asset with the given ID.
func (g *Gallery) OpenFullscreen(id uuid.UUID) error {
	var err error
	if lerr := g.loop.Do(func() {
		rec, ok := g.catalog.Lookup(id)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownAsset, id)
			return
		}
		err = g.full.Open(rec)
	}); lerr != nil {
		return lerr
	}
	return err
}

// CloseFullscreen returns to the grid.
func (g *Gallery) CloseFullscreen() {
	g.loop.Do(g.full.Close)
}

// Navigate moves the fullscreen view within the filtered sequence.
func (g *Gallery) Navigate(d fullscreen.Direction) bool {
	var moved bool
	g.loop.Do(func() { moved = g.full.Navigate(d, g.state.Result()) })
	return moved
}

// FullscreenInfo returns the info panel of the open asset.
func (g *Gallery) FullscreenInfo() (fullscreen.Info, bool) {
	var info fullscreen.Info
	var ok bool
	g.loop.Do(func() { info, ok = g.full.Info() })
	return info, ok
}

// HandleBackdropClick closes the fullscreen view.
func (g *Gallery) HandleBackdropClick() {
	g.loop.Do(g.full.HandleBackdropClick)
}

// HandleKey routes a key press to the fullscreen view when it is open and
// to the grid shortcuts otherwise. It reports whether the key was used.
func (g *Gallery) HandleKey(ev engine.Event) bool {
	var handled bool
	g.loop.Do(func() { handled = g.handleKey(ev) })
	return handled
}

// ExportSelected writes the selection as a zip archive to w.
func (g *Gallery) ExportSelected(ctx context.Context, w io.Writer) (int, error) {
	var records []catalog.Record
	if err := g.loop.Do(func() { records = g.state.SelectedRecords() }); err != nil {
		return 0, err
	}
	return WriteArchive(ctx, w, records)
}

// ExportToDir writes the selection to a timestamped archive in dir and
// returns its path.
func (g *Gallery) ExportToDir(ctx context.Context, dir string) (string, int, error) {
	name := fmt.Sprintf("assetgrid-selection-%s.zip", time.Now().Format("20060102-150405"))
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", 0, fmt.Errorf("export: %w", err)
	}
	n, err := g.ExportSelected(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return "", n, err
	}
	return p, n, nil
}

// LastExport returns the archive written by the last export shortcut.
func (g *Gallery) LastExport() string {
	var p string
	g.loop.Do(func() { p = g.exported })
	return p
}

// Close tears the gallery down: previews are disposed, workers stopped.
func (g *Gallery) Close() {
	g.closeOnce.Do(func() {
		g.loop.Do(func() {
			g.full.Close()
			g.previews.Close()
			if g.watcher != nil {
				g.watcher.Close()
				g.watcher = nil
			}
		})
		g.cancel()
		g.scanMu.Lock()
		g.scanClosed = true
		close(g.scanner.RequestChan)
		g.scanMu.Unlock()
		if g.deps.Store != nil {
			close(g.deps.Store.RequestChan)
		}
		g.wg.Wait()
	})
}

func (g *Gallery) processScans() {
	defer g.wg.Done()
	for resp := range g.scanner.ResponseChan {
		resp := resp
		g.loop.Post(func() { g.applyScan(resp) })
	}
}

func (g *Gallery) processStore() {
	defer g.wg.Done()
	for {
		select {
		case resp := <-g.deps.Store.ResponseChan:
			if resp.Err != nil {
				logging.L().Warn("store error", zap.Error(resp.Err))
				continue
			}
			if resp.Op == store.FetchRecent {
				recent := resp.Recent
				g.loop.Post(func() { g.recent = recent })
			}
		case <-g.ctx.Done():
			return
		}
	}
}

func (g *Gallery) processWatch(w *DirectoryWatcher) {
	defer g.wg.Done()
	for {
		select {
		case dir := <-w.Notify():
			debug.Log(debug.APP, "watch: %s changed", dir)
			g.loop.Post(g.rescan)
		case <-g.ctx.Done():
			return
		}
	}
}

// --- Event loop methods ---

func (g *Gallery) applyScan(resp ScanResponse) {
	if g.ctx.Err() != nil {
		g.signal(resp.Gen, g.ctx.Err())
		return
	}
	if resp.Rescan {
		// Only a refresh of what is shown, and only while no user
		// ingestion has started since it was queued.
		if resp.Gen != g.gen.Load() || resp.Root != g.lastDir || g.picking.Load() {
			debug.Log(debug.APP, "applyScan: dropping superseded rescan of %q", resp.Root.Name())
			return
		}
		if resp.Err != nil {
			logging.L().Warn("rescan failed", zap.String("root", resp.Root.Name()), zap.Error(resp.Err))
			return
		}
	} else if resp.Gen != g.gen.Load() {
		debug.Log(debug.APP, "applyScan: dropping stale gen %d", resp.Gen)
		g.signal(resp.Gen, nil)
		return
	}
	if resp.Err != nil {
		g.fail("scan", resp.Err)
		g.signal(resp.Gen, resp.Err)
		return
	}

	g.invalidate()
	g.catalog.Replace(resp.Root, resp.Records)
	g.lastDir = resp.Root
	g.report = resp.Report
	g.state.Load(resp.Records)
	metrics.SetCatalogRecords(len(resp.Records))

	if resp.Report != nil && len(resp.Report.Errors) > 0 {
		logging.L().Warn("scan skipped unreadable entries",
			zap.String("root", resp.Root.Name()),
			zap.Int("skipped", len(resp.Report.Errors)),
			zap.Error(errors.Join(resp.Report.Errors...)))
	}
	if p, ok := resp.Root.(interface{ Path() string }); ok && !resp.Rescan {
		g.remember(p.Path())
	}

	g.render()
	if !resp.Rescan {
		g.signal(resp.Gen, nil)
	}
}

// remember records an opened directory in the store and, when enabled,
// watches it.
func (g *Gallery) remember(path string) {
	if g.deps.Store != nil {
		select {
		case g.deps.Store.RequestChan <- store.Request{Op: store.AddRecent, Path: path}:
		default:
			debug.Log(debug.STORE, "request queue full, not recording %s", path)
		}
	}
	if !g.opts.Watch {
		return
	}
	if g.watcher == nil {
		w, err := NewDirectoryWatcher(g.opts.Debounce)
		if err != nil {
			logging.L().Warn("directory watch unavailable", zap.Error(err))
			return
		}
		g.watcher = w
		g.wg.Add(1)
		go g.processWatch(w)
	}
	if err := g.watcher.WatchTree(path, g.opts.Depth); err != nil {
		logging.L().Warn("watch failed", zap.String("path", path), zap.Error(err))
	}
}

// rescan refreshes the shown directory after a change on disk. It is
// skipped while a pick or reload is pending; that ingestion supersedes it.
func (g *Gallery) rescan() {
	if g.lastDir == nil {
		return
	}
	if g.picking.Load() {
		debug.Log(debug.APP, "rescan: ingestion pending, skipped")
		return
	}
	req := ScanRequest{Root: g.lastDir, Depth: g.opts.Depth, Gen: g.gen.Load(), Rescan: true}
	if err := g.requestScan(g.ctx, req, false); err != nil {
		debug.Log(debug.APP, "rescan: %v", err)
	}
}

func (g *Gallery) signal(gen int64, err error) {
	g.waitMu.Lock()
	wait, ok := g.waiters[gen]
	delete(g.waiters, gen)
	g.waitMu.Unlock()
	if ok {
		wait <- err
	}
}

// invalidate drops every resource tied to the old catalog.
func (g *Gallery) invalidate() {
	g.full.Close()
	g.previews.Reset()
	g.tiles = make(map[uuid.UUID]placed)
	g.catalog.Invalidate()
}

func (g *Gallery) render() {
	desc := g.state.Describe()
	page := g.state.Result().Page()
	size := g.opts.Layout.TileSize()

	tiles := make([]preview.Tile, len(page))
	next := make(map[uuid.UUID]placed, len(page))
	for i, r := range page {
		rect := g.opts.Layout.Rect(i)
		p, ok := g.tiles[r.ID]
		if !ok || p.rect != rect {
			p = placed{surface: g.deps.NewSurface(size, rect), rect: rect}
		}
		next[r.ID] = p
		tiles[i] = preview.Tile{Record: r, Surface: p.surface}
	}
	g.tiles = next
	g.previews.Sync(tiles)
	g.desc = desc
	debug.Log(debug.APP, "render: %s, %d tiles", desc.PageLabel, len(tiles))
	if g.opts.OnRender != nil {
		g.opts.OnRender(desc)
	}
}

func (g *Gallery) handleKey(ev engine.Event) bool {
	if g.full.IsOpen() {
		return g.full.HandleKey(ev, g.state.Result())
	}

	keys := g.deps.Keys
	mods := fullscreen.Modifiers(ev)
	switch {
	case keys.PrevPage.Matches(ev.Key, mods):
		g.state.PrevPage()
	case keys.NextPage.Matches(ev.Key, mods):
		g.state.NextPage()
	case keys.SelectAll.Matches(ev.Key, mods):
		g.state.SelectAll()
	case keys.ClearSelection.Matches(ev.Key, mods):
		g.state.ClearSelection()
	case keys.Export.Matches(ev.Key, mods):
		g.exportAsync()
		return true
	case keys.Reload.Matches(ev.Key, mods):
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := g.Reload(g.ctx); err != nil && !errors.Is(err, ErrPickInProgress) {
				debug.Log(debug.APP, "reload: %v", err)
			}
		}()
		return true
	default:
		return false
	}
	g.render()
	return true
}

func (g *Gallery) exportAsync() {
	records := g.state.SelectedRecords()
	if len(records) == 0 {
		g.deps.Notifier.Notify("Select at least one asset to export.")
		return
	}
	dir := g.opts.ExportDir
	if dir == "" {
		dir = "."
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		p, n, err := g.ExportToDir(g.ctx, dir)
		if err != nil {
			g.fail("export", err)
			return
		}
		g.loop.Post(func() { g.exported = p })
		g.deps.Notifier.Notify(fmt.Sprintf("Exported %d assets to %s", n, p))
	}()
}

// fail logs err and shows it to the user.
func (g *Gallery) fail(op string, err error) {
	logging.L().Warn(op+" failed", zap.Error(err))
	g.deps.Notifier.Notify("Error: " + err.Error())
}
