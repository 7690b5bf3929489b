package headless

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/preview"
)

// Document is a headless engine.Document. Object URLs map to host files
// until revoked.
type Document struct {
	root    *Element
	counter *listenerCounter

	mu     sync.Mutex
	next   int
	blobs  map[string]host.File
	thumbs *preview.Thumbnailer
}

// NewDocument returns a document. When thumbs is non-nil every image
// element queues its file for thumbnail decoding.
func NewDocument(thumbs *preview.Thumbnailer) *Document {
	c := &listenerCounter{}
	return &Document{
		root:    newElement("document", c),
		counter: c,
		blobs:   make(map[string]host.File),
		thumbs:  thumbs,
	}
}

func (d *Document) Listen(event string, fn engine.Listener) func() {
	return d.root.Listen(event, fn)
}

// Dispatch delivers ev to document-level listeners.
func (d *Document) Dispatch(ev engine.Event) { d.root.Dispatch(ev) }

func (d *Document) CreateElement(tag string) engine.Element {
	return newElement(tag, d.counter)
}

func (d *Document) CreateMedia(kind engine.MediaKind, src string) engine.MediaElement {
	tag := "video"
	if kind == engine.MediaAudio {
		tag = "audio"
	}
	m := &Media{Element: newElement(tag, d.counter), paused: true}
	m.SetAttr("src", src)
	return m
}

func (d *Document) CreateImage(src string) engine.Element {
	e := newElement("img", d.counter)
	e.SetAttr("src", src)
	if d.thumbs != nil {
		if f, ok := d.Resolve(src); ok {
			d.thumbs.RequestLoad(ThumbnailKey(f, src), f)
		}
	}
	return e
}

func (d *Document) NewModelViewer(src string, attrs map[string]string) (engine.Element, error) {
	e := newElement("model-viewer", d.counter)
	e.SetAttr("src", src)
	for k, v := range attrs {
		e.SetAttr(k, v)
	}
	return e, nil
}

func (d *Document) CreateObjectURL(f host.File) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	u := fmt.Sprintf("blob:assetgrid/%d/%s", d.next, url.PathEscape(f.Name()))
	d.blobs[u] = f
	debug.Log(debug.PREVIEW, "object url %s", u)
	return u
}

func (d *Document) RevokeObjectURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blobs, u)
}

// Resolve returns the file behind an object URL.
func (d *Document) Resolve(u string) (host.File, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.blobs[u]
	return f, ok
}

// OpenURLs returns the number of object URLs not yet revoked.
func (d *Document) OpenURLs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blobs)
}

// Listeners returns the number of listeners registered on the document and
// every element it created.
func (d *Document) Listeners() int {
	return d.counter.get()
}

// NewSurface returns a tile or overlay surface.
func (d *Document) NewSurface(size engine.Size) *Surface {
	return &Surface{Element: newElement("surface", d.counter), size: size}
}

// ThumbnailKey identifies f in the thumbnail cache: its path when the host
// exposes one, otherwise the object URL.
func ThumbnailKey(f host.File, src string) string {
	if p, ok := f.(interface{ Path() string }); ok {
		return p.Path()
	}
	return src
}

// Media is a headless media element. Nothing is decoded, so Duration stays
// 0 until SetDuration is called.
type Media struct {
	*Element

	mmu      sync.Mutex
	paused   bool
	position float64
	duration float64
	muted    bool
	controls bool
}

func (m *Media) Play() error {
	m.mmu.Lock()
	m.paused = false
	m.mmu.Unlock()
	m.Dispatch(engine.Event{Type: engine.EventPlay})
	return nil
}

func (m *Media) Pause() {
	m.mmu.Lock()
	m.paused = true
	m.mmu.Unlock()
	m.Dispatch(engine.Event{Type: engine.EventPause})
}

func (m *Media) Paused() bool {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	return m.paused
}

func (m *Media) Seek(seconds float64) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.position = seconds
}

func (m *Media) Position() float64 {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	return m.position
}

func (m *Media) Duration() float64 {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	return m.duration
}

// SetDuration records the duration once metadata is known.
func (m *Media) SetDuration(seconds float64) {
	m.mmu.Lock()
	m.duration = seconds
	m.mmu.Unlock()
	m.Dispatch(engine.Event{Type: engine.EventLoaded})
}

func (m *Media) SetMuted(muted bool) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.muted = muted
}

func (m *Media) SetControls(on bool) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.controls = on
}

// Surface is a headless engine.Surface. Its status line holds the
// placeholder or error text.
type Surface struct {
	*Element

	smu     sync.Mutex
	size    engine.Size
	mounted engine.Element
	status  string
	failed  bool
}

func (s *Surface) Mount(el engine.Element) {
	s.Element.clear()
	s.smu.Lock()
	s.mounted = el
	s.status = ""
	s.failed = false
	s.smu.Unlock()
	s.Element.Append(el)
}

func (s *Surface) ShowPlaceholder(text string) {
	s.smu.Lock()
	defer s.smu.Unlock()
	s.status = text
	s.failed = false
}

func (s *Surface) ShowError(text string) {
	s.smu.Lock()
	defer s.smu.Unlock()
	s.status = text
	s.failed = true
}

func (s *Surface) Size() engine.Size { return s.size }

func (s *Surface) Clear() {
	s.Element.clear()
	s.smu.Lock()
	defer s.smu.Unlock()
	s.mounted = nil
	s.status = ""
	s.failed = false
}

// Status returns the placeholder or error text and whether it is an error.
func (s *Surface) Status() (string, bool) {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.status, s.failed
}

// Mounted returns the mounted element, or nil once it was removed.
func (s *Surface) Mounted() engine.Element {
	s.smu.Lock()
	mounted := s.mounted
	s.smu.Unlock()
	if mounted == nil {
		return nil
	}
	for _, ch := range s.Children() {
		if ch == mounted {
			return mounted
		}
	}
	return nil
}
