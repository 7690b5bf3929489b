// Package enginetest provides an in-memory engine for tests. Every listener
// and object URL is counted so tests can assert that disposal leaves
// nothing behind.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/host"
)

// Document is an in-memory engine.Document.
type Document struct {
	mu        sync.Mutex
	listeners int
	nextURL   int
	urls      map[string]host.File
	created   []*Element

	target *Element

	// ModelViewerErr makes NewModelViewer fail.
	ModelViewerErr error
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	d := &Document{urls: make(map[string]host.File)}
	d.target = &Element{doc: d, Tag: "document", Attrs: map[string]string{}}
	return d
}

// Listeners returns the number of registered listeners across the document
// and every element it created.
func (d *Document) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listeners
}

// OpenURLs returns the number of object URLs not yet revoked.
func (d *Document) OpenURLs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// Elements returns every element created with the given tag.
func (d *Document) Elements(tag string) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Element
	for _, e := range d.created {
		if e.Tag == tag {
			out = append(out, e)
		}
	}
	return out
}

// Media returns every media element created.
func (d *Document) Media() []*Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Media
	for _, e := range d.created {
		if e.media != nil {
			out = append(out, e.media)
		}
	}
	return out
}

// Dispatch delivers ev to document-level listeners.
func (d *Document) Dispatch(ev engine.Event) { d.target.Dispatch(ev) }

func (d *Document) Listen(event string, fn engine.Listener) func() {
	return d.target.Listen(event, fn)
}

func (d *Document) newElement(tag string) *Element {
	e := &Element{doc: d, Tag: tag, Attrs: map[string]string{}}
	d.mu.Lock()
	d.created = append(d.created, e)
	d.mu.Unlock()
	return e
}

func (d *Document) CreateElement(tag string) engine.Element {
	return d.newElement(tag)
}

func (d *Document) CreateMedia(kind engine.MediaKind, src string) engine.MediaElement {
	tag := "video"
	if kind == engine.MediaAudio {
		tag = "audio"
	}
	e := d.newElement(tag)
	e.Attrs["src"] = src
	m := &Media{Element: e, paused: true, duration: 10}
	e.media = m
	return m
}

func (d *Document) CreateImage(src string) engine.Element {
	e := d.newElement("img")
	e.Attrs["src"] = src
	return e
}

func (d *Document) NewModelViewer(src string, attrs map[string]string) (engine.Element, error) {
	if d.ModelViewerErr != nil {
		return nil, d.ModelViewerErr
	}
	e := d.newElement("model-viewer")
	e.Attrs["src"] = src
	for k, v := range attrs {
		e.Attrs[k] = v
	}
	return e, nil
}

func (d *Document) CreateObjectURL(f host.File) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextURL++
	url := fmt.Sprintf("blob:test/%d/%s", d.nextURL, f.Name())
	d.urls[url] = f
	return url
}

func (d *Document) RevokeObjectURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.urls, url)
}

// NewSurface returns a tile surface of the given size.
func (d *Document) NewSurface(w, h int) *Surface {
	return &Surface{Element: d.newElement("surface"), size: engine.Size{Width: w, Height: h}}
}

// Element is an in-memory engine.Element.
type Element struct {
	doc *Document

	mu        sync.Mutex
	Tag       string
	Attrs     map[string]string
	Text      string
	Children  []engine.Element
	Bounds    engine.Rect
	parent    *Element
	removed   bool
	nextID    int
	listeners map[string]map[int]engine.Listener

	media *Media
}

func (e *Element) Listen(event string, fn engine.Listener) func() {
	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[string]map[int]engine.Listener)
	}
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]engine.Listener)
	}
	e.nextID++
	id := e.nextID
	e.listeners[event][id] = fn
	e.mu.Unlock()

	e.doc.mu.Lock()
	e.doc.listeners++
	e.doc.mu.Unlock()

	return func() {
		e.mu.Lock()
		_, ok := e.listeners[event][id]
		delete(e.listeners[event], id)
		e.mu.Unlock()
		if ok {
			e.doc.mu.Lock()
			e.doc.listeners--
			e.doc.mu.Unlock()
		}
	}
}

// Dispatch delivers ev to the element's listeners in registration order.
func (e *Element) Dispatch(ev engine.Event) {
	e.mu.Lock()
	var ids []int
	for id := range e.listeners[ev.Type] {
		ids = append(ids, id)
	}
	fns := make([]engine.Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, e.listeners[ev.Type][id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ListenerCount returns the listeners registered for event.
func (e *Element) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Attrs[name] = value
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Attrs[name]
}

func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Text = text
}

// GetText returns the element's text.
func (e *Element) GetText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Text
}

func (e *Element) Append(child engine.Element) {
	e.mu.Lock()
	e.Children = append(e.Children, child)
	e.mu.Unlock()
	if c := unwrap(child); c != nil {
		c.mu.Lock()
		c.parent = e
		c.removed = false
		c.mu.Unlock()
	}
}

func (e *Element) Remove() {
	e.mu.Lock()
	parent := e.parent
	e.parent = nil
	e.removed = true
	e.mu.Unlock()
	if parent != nil {
		parent.removeChild(e)
	}
}

// Removed reports whether Remove was called since the last Append.
func (e *Element) Removed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

func (e *Element) removeChild(c *Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, ch := range e.Children {
		if unwrap(ch) == c {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			return
		}
	}
}

func (e *Element) Rect() engine.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Bounds
}

func unwrap(el engine.Element) *Element {
	switch v := el.(type) {
	case *Element:
		return v
	case *Media:
		return v.Element
	case *Surface:
		return v.Element
	}
	return nil
}

// Find returns the first descendant with the given class attribute.
func (e *Element) Find(class string) *Element {
	e.mu.Lock()
	children := append([]engine.Element(nil), e.Children...)
	e.mu.Unlock()
	for _, ch := range children {
		c := unwrap(ch)
		if c == nil {
			continue
		}
		if c.Attr("class") == class {
			return c
		}
		if found := c.Find(class); found != nil {
			return found
		}
	}
	return nil
}

// Media is an in-memory engine.MediaElement.
type Media struct {
	*Element

	mmu      sync.Mutex
	paused   bool
	position float64
	duration float64
	muted    bool
	controls bool

	// PlayErr makes Play fail.
	PlayErr error
}

func (m *Media) Play() error {
	m.mmu.Lock()
	if m.PlayErr != nil {
		m.mmu.Unlock()
		return m.PlayErr
	}
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
	m.position = seconds
	m.mmu.Unlock()
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

// SetDuration sets the reported duration.
func (m *Media) SetDuration(d float64) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.duration = d
}

func (m *Media) SetMuted(muted bool) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.muted = muted
}

// Muted reports the muted flag.
func (m *Media) Muted() bool {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	return m.muted
}

func (m *Media) SetControls(on bool) {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	m.controls = on
}

// Controls reports whether native controls are shown.
func (m *Media) Controls() bool {
	m.mmu.Lock()
	defer m.mmu.Unlock()
	return m.controls
}

// Surface is an in-memory engine.Surface.
type Surface struct {
	*Element

	smu         sync.Mutex
	size        engine.Size
	mounted     engine.Element
	placeholder string
	errText     string
}

func (s *Surface) Mount(el engine.Element) {
	s.smu.Lock()
	s.mounted = el
	s.placeholder = ""
	s.errText = ""
	s.smu.Unlock()
	s.Element.Append(el)
}

func (s *Surface) ShowPlaceholder(text string) {
	s.smu.Lock()
	defer s.smu.Unlock()
	s.placeholder = text
}

func (s *Surface) ShowError(text string) {
	s.smu.Lock()
	defer s.smu.Unlock()
	s.errText = text
	s.placeholder = ""
}

func (s *Surface) Size() engine.Size { return s.size }

func (s *Surface) Clear() {
	s.smu.Lock()
	s.mounted = nil
	s.placeholder = ""
	s.errText = ""
	s.smu.Unlock()
	s.Element.mu.Lock()
	s.Element.Children = nil
	s.Element.mu.Unlock()
}

// Mounted returns the element last mounted, or nil.
func (s *Surface) Mounted() engine.Element {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.mounted
}

// ErrorText returns the inline error shown, if any.
func (s *Surface) ErrorText() string {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.errText
}

// Placeholder returns the placeholder text shown, if any.
func (s *Surface) Placeholder() string {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.placeholder
}

// ChildCount returns the number of mounted children.
func (s *Surface) ChildCount() int {
	s.Element.mu.Lock()
	defer s.Element.mu.Unlock()
	return len(s.Element.Children)
}

// SceneEngine is an in-memory engine.SceneEngine. Loads block on Gate when
// it is set.
type SceneEngine struct {
	mu      sync.Mutex
	bundles []*Bundle

	Gate    chan struct{}
	LoadErr error
	// Bounds and Clips describe every loaded model.
	Bounds engine.Box
	Clips  []string
	// BundleErr makes NewBundle fail.
	BundleErr error
}

// NewSceneEngine returns an engine whose models span a 2x4x1 box.
func NewSceneEngine() *SceneEngine {
	return &SceneEngine{
		Bounds: engine.Box{Min: engine.Vec3{X: -1, Y: 0, Z: 0}, Max: engine.Vec3{X: 1, Y: 4, Z: 1}},
		Clips:  []string{"Idle", "Walk"},
	}
}

// Bundles returns every bundle created.
func (s *SceneEngine) Bundles() []*Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Bundle(nil), s.bundles...)
}

func (s *SceneEngine) NewBundle(size engine.Size, cam engine.CameraConfig) (engine.SceneBundle, error) {
	if s.BundleErr != nil {
		return nil, s.BundleErr
	}
	b := &Bundle{Size: size, Camera: cam, canvas: &Element{doc: NewDocument(), Tag: "canvas", Attrs: map[string]string{}}}
	s.mu.Lock()
	s.bundles = append(s.bundles, b)
	s.mu.Unlock()
	return b, nil
}

func (s *SceneEngine) LoadModel(ctx context.Context, url string) (engine.Model, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return &Model{bounds: s.Bounds, clips: s.Clips, Scale: 1}, nil
}

// Bundle is an in-memory engine.SceneBundle.
type Bundle struct {
	mu       sync.Mutex
	Size     engine.Size
	Camera   engine.CameraConfig
	canvas   *Element
	models   []engine.Model
	mixers   []*Mixer
	renders  int
	controls int
	disposed int
}

func (b *Bundle) Canvas() engine.Element { return b.canvas }

func (b *Bundle) Add(m engine.Model) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = append(b.models, m)
}

func (b *Bundle) NewMixer(m engine.Model) engine.Mixer {
	mx := &Mixer{}
	b.mu.Lock()
	b.mixers = append(b.mixers, mx)
	b.mu.Unlock()
	return mx
}

func (b *Bundle) UpdateControls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.controls++
}

func (b *Bundle) ResetView() {}

func (b *Bundle) Render() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renders++
}

func (b *Bundle) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed++
}

// Renders returns the number of Render calls.
func (b *Bundle) Renders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders
}

// Disposed returns the number of Dispose calls.
func (b *Bundle) Disposed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// Models returns the models added to the scene.
func (b *Bundle) Models() []engine.Model {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.Model(nil), b.models...)
}

// Mixers returns the mixers created.
func (b *Bundle) Mixers() []*Mixer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Mixer(nil), b.mixers...)
}

// Model is an in-memory engine.Model.
type Model struct {
	bounds   engine.Box
	clips    []string
	Scale    float64
	Position engine.Vec3
}

func (m *Model) Bounds() engine.Box        { return m.bounds }
func (m *Model) SetScale(s float64)        { m.Scale = s }
func (m *Model) SetPosition(p engine.Vec3) { m.Position = p }
func (m *Model) Clips() []string           { return m.clips }

// Mixer is an in-memory engine.Mixer.
type Mixer struct {
	mu      sync.Mutex
	Playing string
	Elapsed time.Duration
}

func (m *Mixer) Play(clip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Playing = clip
}

func (m *Mixer) Update(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Elapsed += dt
}

// Scheduler is a manually ticked engine.FrameScheduler.
type Scheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]func(time.Time)
	now     time.Time
}

// NewScheduler returns a scheduler whose clock starts at start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{pending: make(map[int]func(time.Time)), now: start}
}

func (s *Scheduler) RequestFrame(fn func(time.Time)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.pending[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pending, id)
	}
}

// Tick advances the clock by dt and runs every frame callback pending
// before the tick.
func (s *Scheduler) Tick(dt time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(dt)
	now := s.now
	var ids []int
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.pending[id])
		delete(s.pending, id)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(now)
	}
}

// Pending returns the number of scheduled callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Observer is a manually driven engine.VisibilityObserver.
type Observer struct {
	mu       sync.Mutex
	watching map[engine.Element]func(bool)
}

// NewObserver returns an observer with nothing observed.
func NewObserver() *Observer {
	return &Observer{watching: make(map[engine.Element]func(bool))}
}

func (o *Observer) Observe(el engine.Element, fn func(bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watching[el] = fn
}

func (o *Observer) Unobserve(el engine.Element) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.watching, el)
}

// SetVisible fires the callback of an observed element. It returns false
// when el is not observed.
func (o *Observer) SetVisible(el engine.Element, visible bool) bool {
	o.mu.Lock()
	fn, ok := o.watching[el]
	o.mu.Unlock()
	if !ok {
		return false
	}
	fn(visible)
	return true
}

// Observed returns the number of observed elements.
func (o *Observer) Observed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.watching)
}

// Queue is an engine.Dispatcher whose posted functions run when the test
// calls Run.
type Queue struct {
	ch chan func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan func(), 64)}
}

func (q *Queue) Post(fn func()) { q.ch <- fn }

// ErrQueueTimeout is returned by Run when nothing was posted in time.
var ErrQueueTimeout = errors.New("enginetest: nothing posted")

// Run waits up to timeout for one posted function and runs it.
func (q *Queue) Run(timeout time.Duration) error {
	select {
	case fn := <-q.ch:
		fn()
		return nil
	case <-time.After(timeout):
		return ErrQueueTimeout
	}
}
