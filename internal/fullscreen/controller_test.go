package fullscreen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/engine/enginetest"
	"github.com/justyntemme/assetgrid/internal/host/hosttest"
	"github.com/justyntemme/assetgrid/internal/preview"
	"github.com/justyntemme/assetgrid/internal/view"
)

type stopCounter struct{ n int }

func (s *stopCounter) StopVideos() { s.n++ }

type fixture struct {
	doc     *enginetest.Document
	surface *enginetest.Surface
	grid    *stopCounter
	c       *Controller
}

func newFixture() *fixture {
	doc := enginetest.NewDocument()
	env := &preview.Env{
		Doc:      doc,
		Scene:    enginetest.NewSceneEngine(),
		Frames:   enginetest.NewScheduler(time.Unix(0, 0)),
		Dispatch: enginetest.NewQueue(),
		Audio:    preview.NewAudioGroup(),
		URLs:     preview.NewURLTracker(doc),
	}
	f := &fixture{doc: doc, surface: doc.NewSurface(1280, 720), grid: &stopCounter{}}
	f.c = New(context.Background(), env, f.surface, config.NewHotkeyMatcher(config.DefaultHotkeys()), f.grid)
	return f
}

func rec(name string) catalog.Record {
	return catalog.Record{
		ID:      uuid.New(),
		Name:    name,
		RelPath: "assets/" + name,
		Kind:    catalog.Classify(name),
		Size:    2048,
		ModTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Handle:  hosttest.NewFile(name, []byte("x"), time.Unix(0, 0)),
	}
}

func result(records ...catalog.Record) view.Result {
	return view.Result{Items: records, PageSize: view.DefaultPageSize}
}

func TestOpenAndClose(t *testing.T) {
	f := newFixture()
	v := rec("clip.mp4")

	require.NoError(t, f.c.Open(v))
	assert.True(t, f.c.IsOpen())
	cur, ok := f.c.Current()
	require.True(t, ok)
	assert.Equal(t, v.ID, cur.ID)

	media := f.doc.Media()
	require.Len(t, media, 1)
	assert.True(t, media[0].Controls())
	assert.False(t, media[0].Paused(), "fullscreen video autoplays")
	assert.Equal(t, 1, f.surface.ChildCount())

	f.c.Close()
	assert.False(t, f.c.IsOpen())
	assert.Zero(t, f.surface.ChildCount())
	assert.Zero(t, f.doc.OpenURLs())
	assert.Zero(t, f.doc.Listeners())
	assert.Equal(t, 1, f.grid.n, "closing stops grid videos")

	f.c.Close()
	assert.Equal(t, 1, f.grid.n, "second close is a no-op")
}

func TestOpenReplacesPrevious(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.c.Open(rec("a.png")))
	require.NoError(t, f.c.Open(rec("b.mp4")))

	assert.Equal(t, 1, f.doc.OpenURLs(), "only one resource alive")
	assert.Equal(t, 1, f.surface.ChildCount())
	_, isMedia := f.surface.Mounted().(*enginetest.Media)
	assert.True(t, isMedia, "video replaced the image")
}

func TestOpenRejectsAudio(t *testing.T) {
	f := newFixture()
	err := f.c.Open(rec("song.mp3"))
	assert.ErrorIs(t, err, ErrNotExpandable)
	assert.False(t, f.c.IsOpen())
}

func TestNavigateSameKind(t *testing.T) {
	f := newFixture()
	a, b, c, d, e := rec("a.mp4"), rec("b.png"), rec("c.mp4"), rec("d.png"), rec("e.mp3")
	res := result(a, b, c, d, e)

	require.NoError(t, f.c.Open(a))
	assert.False(t, f.c.Navigate(Prev, res), "start boundary")
	cur, _ := f.c.Current()
	assert.Equal(t, a.ID, cur.ID)

	assert.True(t, f.c.Navigate(Next, res))
	cur, _ = f.c.Current()
	assert.Equal(t, c.ID, cur.ID, "image in between is skipped")

	assert.False(t, f.c.Navigate(Next, res), "end boundary")
	cur, _ = f.c.Current()
	assert.Equal(t, c.ID, cur.ID)
	assert.Equal(t, 1, f.doc.OpenURLs())

	require.NoError(t, f.c.Open(d))
	assert.True(t, f.c.Navigate(Prev, res))
	cur, _ = f.c.Current()
	assert.Equal(t, b.ID, cur.ID)
}

func TestNavigateWhenFilteredOut(t *testing.T) {
	f := newFixture()
	a, b := rec("a.png"), rec("b.png")
	require.NoError(t, f.c.Open(a))

	assert.False(t, f.c.Navigate(Next, result(b)))
	cur, _ := f.c.Current()
	assert.Equal(t, a.ID, cur.ID)
}

func TestHandleKey(t *testing.T) {
	f := newFixture()
	a, b := rec("a.mp4"), rec("b.mp4")
	res := result(a, b)

	assert.False(t, f.c.HandleKey(engine.Event{Key: config.KeyEscape}, res), "ignored while closed")

	require.NoError(t, f.c.Open(a))
	assert.True(t, f.c.HandleKey(engine.Event{Key: config.KeyArrowRight}, res))
	cur, _ := f.c.Current()
	assert.Equal(t, b.ID, cur.ID)

	video := f.doc.Media()[1]
	require.False(t, video.Paused())
	assert.True(t, f.c.HandleKey(engine.Event{Key: " "}, res))
	assert.True(t, video.Paused(), "space pauses")
	f.c.HandleKey(engine.Event{Key: " "}, res)
	assert.False(t, video.Paused(), "space resumes")

	assert.True(t, f.c.HandleKey(engine.Event{Key: config.KeyArrowLeft}, res))
	cur, _ = f.c.Current()
	assert.Equal(t, a.ID, cur.ID)

	assert.False(t, f.c.HandleKey(engine.Event{Key: "q"}, res))

	assert.True(t, f.c.HandleKey(engine.Event{Key: config.KeyEscape}, res))
	assert.False(t, f.c.IsOpen())
}

func TestBackdropClickCloses(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.c.Open(rec("a.glb")))
	f.c.HandleBackdropClick()
	assert.False(t, f.c.IsOpen())
}

func TestLoadFailureStaysOpen(t *testing.T) {
	f := newFixture()
	f.doc.ModelViewerErr = errors.New("viewer unavailable")

	err := f.c.Open(rec("scene.gltf"))
	var lerr *preview.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.True(t, f.c.IsOpen())
	assert.Equal(t, err, f.c.Err())
	assert.Equal(t, "Error loading glb", f.surface.ErrorText())
}

func TestInfo(t *testing.T) {
	f := newFixture()
	_, ok := f.c.Info()
	assert.False(t, ok)

	r := rec("hero.fbx")
	full := `root\assets\hero.fbx`
	r.FullPath = &full
	require.NoError(t, f.c.Open(r))

	info, ok := f.c.Info()
	require.True(t, ok)
	assert.Equal(t, "hero.fbx", info.Name)
	assert.Equal(t, catalog.RigidModel, info.Kind)
	assert.Equal(t, "2.0 KiB", info.Size)
	assert.Equal(t, full, info.Path)
	assert.NotEmpty(t, info.Modified)
}

func TestModifiers(t *testing.T) {
	m := Modifiers(engine.Event{Ctrl: true, Shift: true})
	assert.Equal(t, config.ModCtrl|config.ModShift, m)
	assert.Zero(t, Modifiers(engine.Event{}))
}
