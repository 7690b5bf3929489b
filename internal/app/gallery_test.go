package app

import (
	"archive/zip"
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/engine/enginetest"
	"github.com/justyntemme/assetgrid/internal/fullscreen"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/host/hosttest"
	"github.com/justyntemme/assetgrid/internal/view"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

type harness struct {
	g        *Gallery
	doc      *enginetest.Document
	obs      *enginetest.Observer
	picker   *hosttest.Picker
	notes    *recorder
	surfaces []*enginetest.Surface
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop()
	go loop.Run(ctx)

	h := &harness{
		doc:    enginetest.NewDocument(),
		obs:    enginetest.NewObserver(),
		picker: &hosttest.Picker{},
		notes:  &recorder{},
	}
	deps := Deps{
		Picker:   h.picker,
		Doc:      h.doc,
		Scene:    enginetest.NewSceneEngine(),
		Frames:   enginetest.NewScheduler(time.Unix(0, 0)),
		Observer: h.obs,
		NewSurface: func(size engine.Size, rect engine.Rect) engine.Surface {
			s := h.doc.NewSurface(size.Width, size.Height)
			h.surfaces = append(h.surfaces, s)
			return s
		},
		Fullscreen: h.doc.NewSurface(1280, 720),
		Notifier:   h.notes,
		Keys:       config.NewHotkeyMatcher(config.DefaultHotkeys()),
	}
	h.g = NewGallery(ctx, loop, deps, opts)
	h.g.Start()
	t.Cleanup(func() {
		h.g.Close()
		cancel()
	})
	return h
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleTree() *hosttest.Dir {
	root := hosttest.NewDir("assets")
	root.File("b.png", []byte("png"), epoch)
	root.File("a.glb", []byte("glb"), epoch)
	root.File("readme.txt", []byte("txt"), epoch)
	root.File("c.mp4", []byte("mp4"), epoch)
	sub := root.Dir("sounds")
	sub.File("d.mp3", []byte("mp3"), epoch)
	return root
}

func names(d view.PageDescription) []string {
	var out []string
	for _, t := range d.Tiles {
		out = append(out, t.Name)
	}
	return out
}

func TestPickIngestsDirectory(t *testing.T) {
	h := newHarness(t, Options{Depth: catalog.DepthAll})
	h.picker.Dir = sampleTree()

	require.NoError(t, h.g.Pick(context.Background()))

	d := h.g.Describe()
	assert.Equal(t, []string{"a.glb", "b.png", "c.mp4", "d.mp3"}, names(d))
	assert.Equal(t, "Page 1 of 1", d.PageLabel)
	assert.Equal(t, 4, h.g.PreviewStats().Observed)
	assert.Equal(t, 4, h.obs.Observed())
	require.NotNil(t, h.g.Report())
	assert.Equal(t, 1, h.g.Report().Unsupported)
}

func TestPickDepthOff(t *testing.T) {
	h := newHarness(t, Options{Depth: 0})
	h.picker.Dir = sampleTree()
	require.NoError(t, h.g.Pick(context.Background()))
	assert.Equal(t, []string{"a.glb", "b.png", "c.mp4"}, names(h.g.Describe()))
}

func TestPickAbortIsSilent(t *testing.T) {
	h := newHarness(t, Options{})
	h.picker.Err = host.ErrUserAbort
	require.NoError(t, h.g.Pick(context.Background()))
	assert.Empty(t, h.notes.Messages())
	assert.True(t, h.g.Describe().Empty)
}

func TestPickDeniedRootNotifies(t *testing.T) {
	h := newHarness(t, Options{})
	root := hosttest.NewDir("locked")
	root.Denied = true
	h.picker.Dir = root

	err := h.g.Pick(context.Background())
	var aerr *catalog.AccessError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, host.ErrPermission)
	msgs := h.notes.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Error: ")
}

func TestPickReentrancyGuard(t *testing.T) {
	h := newHarness(t, Options{})
	h.picker.Dir = sampleTree()
	h.picker.Gate = make(chan struct{})

	first := make(chan error, 1)
	go func() { first <- h.g.Pick(context.Background()) }()
	require.Eventually(t, func() bool { return h.picker.Calls() == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, h.g.Pick(context.Background()), ErrPickInProgress)
	assert.ErrorIs(t, h.g.Reload(context.Background()), ErrPickInProgress)
	assert.Equal(t, 1, h.picker.Calls(), "second pick never reached the picker")
	assert.Empty(t, h.notes.Messages())

	close(h.picker.Gate)
	require.NoError(t, <-first)
	assert.Len(t, h.g.Describe().Tiles, 3)
}

func TestReload(t *testing.T) {
	h := newHarness(t, Options{})
	assert.ErrorIs(t, h.g.Reload(context.Background()), ErrNoDirectory)

	root := hosttest.NewDir("assets")
	root.File("a.png", nil, epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), root))
	assert.Len(t, h.g.Describe().Tiles, 1)

	root.File("b.png", nil, epoch)
	require.NoError(t, h.g.Reload(context.Background()))
	assert.Equal(t, []string{"a.png", "b.png"}, names(h.g.Describe()))
}

func TestEmptyGridBeforeFirstIngestion(t *testing.T) {
	h := newHarness(t, Options{})
	d := h.g.Describe()
	assert.True(t, d.Empty)
	assert.Equal(t, "Page 1 of 1", d.PageLabel)
	assert.Equal(t, "0 Selected", d.SelectionLabel)
}

func TestRescanDuringPickKeepsPick(t *testing.T) {
	h := newHarness(t, Options{})
	a := hosttest.NewDir("a")
	a.File("old.png", nil, epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), a))

	b := hosttest.NewDir("b")
	b.File("new.png", nil, epoch)
	b.Gate = make(chan struct{})
	h.picker.Dir = b

	done := make(chan error, 1)
	go func() { done <- h.g.Pick(context.Background()) }()
	require.Eventually(t, func() bool { return b.Listed() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.g.Do(h.g.rescan))
	close(b.Gate)

	require.NoError(t, <-done)
	assert.Equal(t, []string{"new.png"}, names(h.g.Describe()))
	assert.Equal(t, 1, a.Listed(), "no rescan was queued while picking")
}

func TestStaleRescanDoesNotReplacePick(t *testing.T) {
	h := newHarness(t, Options{})
	a := hosttest.NewDir("a")
	a.File("old.png", nil, epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), a))

	// Hold the rescan of a inside the scanner.
	a.Gate = make(chan struct{})
	require.NoError(t, h.g.Do(h.g.rescan))
	require.Eventually(t, func() bool { return a.Listed() == 2 }, time.Second, time.Millisecond)

	b := hosttest.NewDir("b")
	b.File("new.png", nil, epoch)
	h.picker.Dir = b
	done := make(chan error, 1)
	go func() { done <- h.g.Pick(context.Background()) }()
	require.Eventually(t, func() bool { return h.g.gen.Load() == 2 }, time.Second, time.Millisecond)

	close(a.Gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"new.png"}, names(h.g.Describe()))

	// A later rescan refreshes b.
	b.File("newer.png", nil, epoch)
	require.NoError(t, h.g.Do(h.g.rescan))
	assert.Eventually(t, func() bool {
		return len(h.g.Describe().Tiles) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestReloadAfterCloseFails(t *testing.T) {
	h := newHarness(t, Options{})
	root := hosttest.NewDir("assets")
	root.File("a.png", nil, epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), root))

	h.g.Close()
	assert.NotPanics(t, func() {
		err := h.g.ingest(context.Background(), root)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestIngestionResetsPageAndSelection(t *testing.T) {
	h := newHarness(t, Options{PageSize: 2})
	h.picker.Dir = sampleTree()
	require.NoError(t, h.g.Pick(context.Background()))

	require.NoError(t, h.g.Update(func(s *view.State) error {
		s.NextPage()
		s.SelectAll()
		return nil
	}))
	d := h.g.Describe()
	assert.Equal(t, 1, d.PageIndex)
	assert.Equal(t, 3, d.SelectedCount)

	require.NoError(t, h.g.Reload(context.Background()))
	d = h.g.Describe()
	assert.Equal(t, 0, d.PageIndex)
	assert.Zero(t, d.SelectedCount)
}

func TestDrop(t *testing.T) {
	h := newHarness(t, Options{})
	files := []host.File{
		hosttest.NewFile("z.wav", []byte("w"), epoch),
		hosttest.NewFile("notes.txt", nil, epoch),
		hosttest.NewFile("a.gif", []byte("g"), epoch),
	}
	require.NoError(t, h.g.Drop(context.Background(), files))
	assert.Equal(t, []string{"a.gif", "z.wav"}, names(h.g.Describe()))

	err := h.g.Drop(context.Background(), []host.File{hosttest.NewFile("x.doc", nil, epoch)})
	assert.ErrorIs(t, err, ErrNoSupportedFiles)
	assert.Equal(t, []string{NoSupportedFilesMessage}, h.notes.Messages())
	assert.Equal(t, []string{"a.gif", "z.wav"}, names(h.g.Describe()), "failed drop keeps the view")
}

func TestPageChangeDisposesPreviews(t *testing.T) {
	h := newHarness(t, Options{PageSize: 2})
	h.picker.Dir = sampleTree()
	require.NoError(t, h.g.Pick(context.Background()))

	first := append([]*enginetest.Surface(nil), h.surfaces...)
	require.Len(t, first, 2)
	require.NoError(t, h.g.Do(func() {
		for _, s := range first {
			h.obs.SetVisible(s, true)
		}
	}))
	assert.Equal(t, 2, h.g.PreviewStats().Active)
	assert.NotZero(t, h.doc.OpenURLs())

	assert.True(t, h.g.HandleKey(engine.Event{Key: config.KeyPageDown}))
	assert.Equal(t, 1, h.g.Describe().PageIndex)
	assert.Zero(t, h.g.PreviewStats().Active)
	assert.Equal(t, 1, h.g.PreviewStats().Observed)
	assert.Zero(t, h.doc.OpenURLs(), "old page released its urls")

	assert.True(t, h.g.HandleKey(engine.Event{Key: config.KeyPageUp}))
	assert.Equal(t, 0, h.g.Describe().PageIndex)
}

func TestFullscreenThroughGallery(t *testing.T) {
	h := newHarness(t, Options{})
	root := hosttest.NewDir("clips")
	root.File("a.mp4", []byte("a"), epoch)
	root.File("b.png", []byte("b"), epoch)
	root.File("c.mp4", []byte("c"), epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), root))

	res := h.g.Result()
	require.Equal(t, 3, res.Total())
	require.NoError(t, h.g.OpenFullscreen(res.Items[0].ID))

	info, ok := h.g.FullscreenInfo()
	require.True(t, ok)
	assert.Equal(t, "a.mp4", info.Name)

	assert.True(t, h.g.HandleKey(engine.Event{Key: config.KeyArrowRight}))
	info, _ = h.g.FullscreenInfo()
	assert.Equal(t, "c.mp4", info.Name)
	assert.False(t, h.g.Navigate(fullscreen.Next), "end of same-kind run")

	assert.True(t, h.g.HandleKey(engine.Event{Key: config.KeyEscape}))
	_, ok = h.g.FullscreenInfo()
	assert.False(t, ok)

	require.NoError(t, h.g.OpenFullscreen(res.Items[1].ID))
	h.g.HandleBackdropClick()
	_, ok = h.g.FullscreenInfo()
	assert.False(t, ok)
}

func TestSearchAndKindFilter(t *testing.T) {
	h := newHarness(t, Options{Depth: catalog.DepthAll})
	h.picker.Dir = sampleTree()
	require.NoError(t, h.g.Pick(context.Background()))

	require.NoError(t, h.g.Update(func(s *view.State) error {
		s.SetSearch("sounds")
		return nil
	}))
	assert.Equal(t, []string{"d.mp3"}, names(h.g.Describe()))

	require.NoError(t, h.g.Update(func(s *view.State) error {
		s.SetSearch("")
		s.SetKinds([]catalog.Kind{catalog.Video, catalog.Image})
		return nil
	}))
	assert.Equal(t, []string{"b.png", "c.mp4"}, names(h.g.Describe()))

	err := h.g.Update(func(s *view.State) error { return s.SetPageSize(0) })
	assert.ErrorIs(t, err, view.ErrInvalidPageSize)
}

func TestExportSelected(t *testing.T) {
	h := newHarness(t, Options{Depth: catalog.DepthAll})
	root := hosttest.NewDir("assets")
	root.File("same.png", []byte("top"), epoch)
	root.Dir("nested").File("same.png", []byte("nested"), epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), root))

	var buf bytes.Buffer
	_, err := h.g.ExportSelected(context.Background(), &buf)
	assert.ErrorIs(t, err, ErrNothingSelected)

	assert.True(t, h.g.HandleKey(engine.Event{Key: "a", Ctrl: true}) || h.g.HandleKey(engine.Event{Key: "a", Meta: true}))
	n, err := h.g.ExportSelected(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	sort.Strings(entries)
	assert.Equal(t, []string{"nested/same.png", "same.png"}, entries)
}

func TestExportToDir(t *testing.T) {
	h := newHarness(t, Options{})
	root := hosttest.NewDir("assets")
	root.File("a.glb", []byte("glb"), epoch)
	require.NoError(t, h.g.OpenDirectory(context.Background(), root))
	require.NoError(t, h.g.Update(func(s *view.State) error { s.SelectAll(); return nil }))

	p, n, err := h.g.ExportToDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, p)
}
