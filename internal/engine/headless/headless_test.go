package headless

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/host/hosttest"
	"github.com/justyntemme/assetgrid/internal/preview"
)

func TestListenersAreCounted(t *testing.T) {
	doc := NewDocument(nil)
	el := doc.CreateElement("div")

	var got []float64
	remove := el.Listen(engine.EventPointerDown, func(ev engine.Event) { got = append(got, ev.X) })
	removeDoc := doc.Listen(engine.EventPointerUp, func(engine.Event) {})
	assert.Equal(t, 2, doc.Listeners())

	el.(*Element).Dispatch(engine.Event{Type: engine.EventPointerDown, X: 3})
	assert.Equal(t, []float64{3}, got)

	remove()
	remove()
	removeDoc()
	assert.Zero(t, doc.Listeners())
	el.(*Element).Dispatch(engine.Event{Type: engine.EventPointerDown, X: 4})
	assert.Len(t, got, 1)
}

func TestObjectURLs(t *testing.T) {
	doc := NewDocument(nil)
	f := hosttest.NewFile("my clip.mp4", nil, time.Time{})
	u := doc.CreateObjectURL(f)
	assert.Contains(t, u, "my%20clip.mp4")

	got, ok := doc.Resolve(u)
	require.True(t, ok)
	assert.Equal(t, f, got)
	assert.Equal(t, 1, doc.OpenURLs())

	doc.RevokeObjectURL(u)
	_, ok = doc.Resolve(u)
	assert.False(t, ok)
	assert.Zero(t, doc.OpenURLs())
}

func TestSurfaceMountAndRemove(t *testing.T) {
	doc := NewDocument(nil)
	s := doc.NewSurface(engine.Size{Width: 200, Height: 180})
	s.ShowPlaceholder("Loading video...")
	text, failed := s.Status()
	assert.Equal(t, "Loading video...", text)
	assert.False(t, failed)

	el := doc.CreateElement("div")
	s.Mount(el)
	assert.Equal(t, el, s.Mounted())
	text, _ = s.Status()
	assert.Empty(t, text)

	el.Remove()
	assert.Nil(t, s.Mounted())
	assert.Empty(t, s.Children())

	s.ShowError("Error loading fbx")
	text, failed = s.Status()
	assert.Equal(t, "Error loading fbx", text)
	assert.True(t, failed)
}

func TestImagesQueueThumbnails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 150))))
	f := hosttest.NewFile("wide.png", buf.Bytes(), time.Time{})

	thumbs := preview.NewThumbnailer(8, 60)
	defer thumbs.Stop()
	doc := NewDocument(thumbs)
	u := doc.CreateObjectURL(f)
	doc.CreateImage(u)

	require.Eventually(t, func() bool {
		_, ok := thumbs.Get(ThumbnailKey(f, u))
		return ok
	}, time.Second, 5*time.Millisecond)
	th, _ := thumbs.Get(ThumbnailKey(f, u))
	assert.Equal(t, image.Pt(60, 30), th.Image.Bounds().Size())
}

func TestSceneEngine(t *testing.T) {
	doc := NewDocument(nil)
	se := NewSceneEngine(doc)
	b, err := se.NewBundle(engine.Size{Width: 200, Height: 180}, preview.DefaultCamera)
	require.NoError(t, err)
	assert.Equal(t, "200", b.Canvas().(*Element).Attr("width"))
	assert.Equal(t, 1, se.Active())

	_, err = se.LoadModel(context.Background(), "blob:x")
	assert.ErrorIs(t, err, ErrNoLoader)

	b.Dispose()
	b.Dispose()
	assert.Zero(t, se.Active())
}

func TestViewportVisibility(t *testing.T) {
	v := NewViewport(600)
	doc := NewDocument(nil)

	near := doc.CreateElement("div").(*Element)
	near.SetRect(engine.Rect{Top: 620, Height: 200}) // within the 50px margin
	far := doc.CreateElement("div").(*Element)
	far.SetRect(engine.Rect{Top: 1400, Height: 200})

	var nearSeen, farSeen []bool
	v.Observe(near, func(vis bool) { nearSeen = append(nearSeen, vis) })
	v.Observe(far, func(vis bool) { farSeen = append(farSeen, vis) })
	assert.Equal(t, []bool{true}, nearSeen)
	assert.Empty(t, farSeen)

	v.ScrollTo(900)
	assert.Equal(t, []bool{true, false}, nearSeen)
	assert.Equal(t, []bool{true}, farSeen)

	v.ScrollTo(900)
	assert.Len(t, farSeen, 1, "no change, no callback")

	v.Unobserve(far)
	v.ScrollTo(0)
	assert.Len(t, farSeen, 1)
	assert.Equal(t, 1, v.Observed())
}

func TestViewportThreshold(t *testing.T) {
	v := NewViewport(100)
	v.Margin = 0
	doc := NewDocument(nil)
	el := doc.CreateElement("div").(*Element)
	el.SetRect(engine.Rect{Top: 95, Height: 100}) // 5% inside

	seen := 0
	v.Observe(el, func(bool) { seen++ })
	assert.Zero(t, seen)

	el.SetRect(engine.Rect{Top: 85, Height: 100}) // 15% inside
	v.ScrollTo(0)
	assert.Equal(t, 1, seen)
}

func TestTickerRunsFramesOnDispatcher(t *testing.T) {
	posted := make(chan func(), 8)
	tk := NewTicker(engine.DispatchFunc(func(fn func()) { posted <- fn }), time.Millisecond)
	defer tk.Stop()

	frames := 0
	tk.RequestFrame(func(time.Time) { frames++ })
	cancel := tk.RequestFrame(func(time.Time) { frames += 100 })
	cancel()

	select {
	case fn := <-posted:
		fn()
	case <-time.After(time.Second):
		t.Fatal("no frame posted")
	}
	assert.Equal(t, 1, frames)
	assert.Zero(t, tk.Pending())
}
