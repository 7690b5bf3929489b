package preview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/engine/enginetest"
)

func tilesFor(f *fixture, names ...string) []Tile {
	tiles := make([]Tile, len(names))
	for i, name := range names {
		tiles[i] = Tile{Record: record(name), Surface: f.doc.NewSurface(200, 180)}
	}
	return tiles
}

func TestManagerAttachesOnVisibility(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "a.png", "b.mp4", "c.mp3")
	m.Sync(tiles)

	assert.Equal(t, 3, obs.Observed())
	assert.Equal(t, Stats{Observed: 3}, m.Stats())
	surface := tiles[0].Surface.(*enginetest.Surface)
	assert.Equal(t, "Loading image...", surface.Placeholder())
	assert.Zero(t, f.doc.OpenURLs(), "nothing loads before it is visible")

	require.True(t, obs.SetVisible(tiles[0].Surface, true))
	assert.True(t, m.Active(tiles[0].Record.ID))
	assert.Equal(t, 1, m.Stats().Active)
	assert.Equal(t, 1, surface.ChildCount())

	// Repeated visibility keeps one resource per tile.
	obs.SetVisible(tiles[0].Surface, true)
	assert.Equal(t, 1, f.doc.OpenURLs())
	assert.Len(t, f.doc.Elements("img"), 1)
}

func TestManagerDisposesWhenLeavingViewport(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "clip.mp4")
	m.Sync(tiles)
	obs.SetVisible(tiles[0].Surface, true)
	require.True(t, m.Active(tiles[0].Record.ID))
	require.NotZero(t, f.doc.Listeners())

	obs.SetVisible(tiles[0].Surface, false)
	assert.False(t, m.Active(tiles[0].Record.ID))
	assert.Zero(t, f.doc.Listeners())
	assert.Zero(t, f.doc.OpenURLs())

	obs.SetVisible(tiles[0].Surface, true)
	assert.True(t, m.Active(tiles[0].Record.ID), "recreated on return")
	assert.Len(t, f.doc.Media(), 2)
}

func TestManagerPageChange(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	page1 := tilesFor(f, "a.mp4", "b.mp3", "c.glb")
	m.Sync(page1)
	for _, tile := range page1 {
		obs.SetVisible(tile.Surface, true)
	}
	require.Equal(t, 3, m.Stats().Active)

	keep := page1[2]
	page2 := append(tilesFor(f, "d.png"), keep)
	m.Sync(page2)

	assert.Equal(t, Stats{Observed: 2, Active: 1}, m.Stats())
	assert.Equal(t, 2, obs.Observed())
	assert.False(t, obs.SetVisible(page1[0].Surface, true), "left tiles are unobserved")
	assert.Equal(t, 1, f.doc.Listeners(), "only the kept viewer's error listener remains")
	assert.Equal(t, 1, f.doc.OpenURLs(), "only the kept tile holds a url")
	assert.Zero(t, f.env.Audio.Len())
	assert.True(t, m.Active(keep.Record.ID))
}

func TestManagerFailureIsolation(t *testing.T) {
	f := newFixture()
	f.doc.ModelViewerErr = errors.New("viewer unavailable")
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "broken.glb", "ok.png", "ok.mp4")
	m.Sync(tiles)
	for _, tile := range tiles {
		obs.SetVisible(tile.Surface, true)
	}

	broken := tiles[0]
	assert.True(t, m.Failed(broken.Record.ID))
	assert.Equal(t, "Error loading glb", broken.Surface.(*enginetest.Surface).ErrorText())
	assert.Equal(t, Stats{Observed: 3, Active: 2, Failed: 1}, m.Stats())

	// A failed tile is not retried.
	f.doc.ModelViewerErr = nil
	obs.SetVisible(broken.Surface, false)
	obs.SetVisible(broken.Surface, true)
	assert.Empty(t, f.doc.Elements("model-viewer"))
	assert.True(t, m.Failed(broken.Record.ID))
}

func TestManagerAsyncFailure(t *testing.T) {
	f := newFixture()
	f.scene.LoadErr = errors.New("truncated")
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "bad.fbx", "good.png")
	m.Sync(tiles)
	obs.SetVisible(tiles[0].Surface, true)
	obs.SetVisible(tiles[1].Surface, true)
	require.True(t, m.Active(tiles[0].Record.ID), "attached while loading")

	require.NoError(t, f.queue.Run(time.Second))
	assert.True(t, m.Failed(tiles[0].Record.ID))
	assert.False(t, m.Active(tiles[0].Record.ID))
	assert.True(t, m.Active(tiles[1].Record.ID))
	assert.Equal(t, "Error loading fbx", tiles[0].Surface.(*enginetest.Surface).ErrorText())
}

func TestManagerElementLoadError(t *testing.T) {
	for _, tc := range []struct {
		name, tag, errorText string
	}{
		{"clip.mp4", "video", "Error loading video"},
		{"song.mp3", "audio", "Error loading audio"},
		{"pic.png", "img", "Error loading image"},
		{"scene.glb", "model-viewer", "Error loading glb"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			obs := enginetest.NewObserver()
			m := NewManager(context.Background(), f.env, obs)
			defer m.Close()

			tiles := tilesFor(f, tc.name)
			m.Sync(tiles)
			obs.SetVisible(tiles[0].Surface, true)
			require.True(t, m.Active(tiles[0].Record.ID))

			els := f.doc.Elements(tc.tag)
			require.Len(t, els, 1)
			els[0].Dispatch(engine.Event{Type: engine.EventError})

			surface := tiles[0].Surface.(*enginetest.Surface)
			assert.Equal(t, tc.errorText, surface.ErrorText(), "inline error shown at once")
			assert.Zero(t, f.doc.OpenURLs())

			require.NoError(t, f.queue.Run(time.Second))
			assert.True(t, m.Failed(tiles[0].Record.ID))
			assert.False(t, m.Active(tiles[0].Record.ID))
			assert.Zero(t, f.doc.Listeners())

			// Not retried when it scrolls back in.
			obs.SetVisible(tiles[0].Surface, false)
			obs.SetVisible(tiles[0].Surface, true)
			assert.Len(t, f.doc.Elements(tc.tag), 1)
			assert.True(t, m.Failed(tiles[0].Record.ID))
		})
	}
}

func TestManagerElementLoadErrorIsolation(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "bad.mp4", "good.mp4", "good.png")
	m.Sync(tiles)
	for _, tile := range tiles {
		obs.SetVisible(tile.Surface, true)
	}
	videos := f.doc.Elements("video")
	require.Len(t, videos, 2)

	videos[0].Dispatch(engine.Event{Type: engine.EventError})
	require.NoError(t, f.queue.Run(time.Second))

	assert.True(t, m.Failed(tiles[0].Record.ID))
	assert.True(t, m.Active(tiles[1].Record.ID))
	assert.True(t, m.Active(tiles[2].Record.ID))
	assert.Equal(t, Stats{Observed: 3, Active: 2, Failed: 1}, m.Stats())
	assert.Empty(t, tiles[1].Surface.(*enginetest.Surface).ErrorText())
	assert.Equal(t, 2, f.doc.OpenURLs())

	// A second error from the same element is ignored.
	videos[0].Dispatch(engine.Event{Type: engine.EventError})
	assert.ErrorIs(t, f.queue.Run(10*time.Millisecond), enginetest.ErrQueueTimeout)
}

func TestManagerUnsupportedTile(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "readme.txt")
	m.Sync(tiles)
	obs.SetVisible(tiles[0].Surface, true)
	assert.True(t, m.Failed(tiles[0].Record.ID))
}

func TestManagerReset(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)

	tiles := tilesFor(f, "a.png", "b.mp4", "c.fbx")
	m.Sync(tiles)
	for _, tile := range tiles {
		obs.SetVisible(tile.Surface, true)
	}
	// An object URL created outside any tile is released too.
	f.env.URLs.Create(tiles[0].Record.Handle)

	m.Reset()
	assert.Equal(t, Stats{}, m.Stats())
	assert.Zero(t, obs.Observed())
	assert.Zero(t, f.doc.OpenURLs())
	assert.Zero(t, f.doc.Listeners())
	assert.Zero(t, f.frames.Pending())

	m.Close()
	m.Sync(tiles)
	assert.Zero(t, obs.Observed(), "sync after close is ignored")
}

func TestManagerStopVideos(t *testing.T) {
	f := newFixture()
	obs := enginetest.NewObserver()
	m := NewManager(context.Background(), f.env, obs)
	defer m.Close()

	tiles := tilesFor(f, "a.mp4", "b.mp4", "c.png")
	m.Sync(tiles)
	for _, tile := range tiles {
		obs.SetVisible(tile.Surface, true)
	}
	for _, v := range f.doc.Media() {
		require.NoError(t, v.Play())
		v.Seek(3)
	}

	m.StopVideos()
	for _, v := range f.doc.Media() {
		assert.True(t, v.Paused())
		assert.Zero(t, v.Position())
	}
}
