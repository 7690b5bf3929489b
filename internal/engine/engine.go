// Package engine describes the presentation collaborators the preview
// lifecycle drives: a document that builds elements and temporary object
// URLs, media elements, a 3D scene engine, a frame scheduler and a
// visibility observer. Package headless implements it without a display.
package engine

import (
	"context"
	"time"

	"github.com/justyntemme/assetgrid/internal/host"
)

// Event names delivered to element and document listeners.
const (
	EventPointerDown = "pointerdown"
	EventPointerMove = "pointermove"
	EventPointerUp   = "pointerup"
	EventClick       = "click"
	EventPlay        = "play"
	EventPause       = "pause"
	EventTimeUpdate  = "timeupdate"
	EventLoaded      = "loadedmetadata"
	EventError       = "error"
)

// Event is a pointer, media or keyboard event.
type Event struct {
	Type string
	X, Y float64 // pointer position in viewport coordinates
	Key  string

	Ctrl, Shift, Alt, Meta bool
}

// Listener handles an Event.
type Listener func(Event)

// Size is a pixel size.
type Size struct {
	Width, Height int
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Left, Top, Width, Height float64
}

// Target is anything events can be listened on. The returned function
// removes the listener; calling it more than once is harmless.
type Target interface {
	Listen(event string, fn Listener) (remove func())
}

// Element is a node in the presentation tree.
type Element interface {
	Target
	SetAttr(name, value string)
	SetText(text string)
	Append(child Element)
	// Remove detaches the element from its parent.
	Remove()
	Rect() Rect
}

// MediaElement is a video or audio element.
type MediaElement interface {
	Element
	Play() error
	Pause()
	Paused() bool
	// Seek moves the playback position, in seconds.
	Seek(seconds float64)
	Position() float64
	// Duration is 0 until metadata has loaded.
	Duration() float64
	SetMuted(muted bool)
	SetControls(on bool)
}

// MediaKind selects CreateMedia's element type.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

// Document builds elements and manages temporary object URLs.
type Document interface {
	Target
	CreateElement(tag string) Element
	CreateMedia(kind MediaKind, src string) MediaElement
	CreateImage(src string) Element
	// NewModelViewer creates the embeddable scene-model viewer.
	NewModelViewer(src string, attrs map[string]string) (Element, error)
	// CreateObjectURL returns a temporary URL for f's content. Content is
	// read lazily by whichever element loads the URL.
	CreateObjectURL(f host.File) string
	RevokeObjectURL(url string)
}

// Surface is the mount point of one tile or of the fullscreen overlay.
type Surface interface {
	Element
	// Mount replaces the surface content with el.
	Mount(el Element)
	ShowPlaceholder(text string)
	ShowError(text string)
	Size() Size
	Clear()
}

// Vec3 is a point or extent in world units.
type Vec3 struct {
	X, Y, Z float64
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// Center returns the midpoint of b.
func (b Box) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// Extent returns the per-axis size of b.
func (b Box) Extent() Vec3 {
	return Vec3{b.Max.X - b.Min.X, b.Max.Y - b.Min.Y, b.Max.Z - b.Min.Z}
}

// Model is a loaded scene-graph node.
type Model interface {
	Bounds() Box
	SetScale(s float64)
	SetPosition(p Vec3)
	// Clips lists animation clip names in file order.
	Clips() []string
}

// Mixer plays animation clips on one model.
type Mixer interface {
	Play(clip string)
	Update(dt time.Duration)
}

// CameraConfig positions the perspective camera and lights of a bundle.
type CameraConfig struct {
	FOV            float64
	Position       Vec3
	ClearColor     uint32
	AmbientLight   float64
	DirectionalPos Vec3
	Directional    float64
	Damping        float64
}

// SceneBundle is a scene with camera, renderer, lights and orbit controls,
// sized to one surface.
type SceneBundle interface {
	// Canvas is the renderer's output element.
	Canvas() Element
	Add(m Model)
	NewMixer(m Model) Mixer
	UpdateControls()
	ResetView()
	Render()
	// Dispose releases the renderer context, controls and scene resources.
	Dispose()
}

// SceneEngine creates scene bundles and loads rigid models.
type SceneEngine interface {
	NewBundle(size Size, cam CameraConfig) (SceneBundle, error)
	// LoadModel blocks until the model at url is parsed.
	LoadModel(ctx context.Context, url string) (Model, error)
}

// FrameScheduler runs fn before the next presented frame. Loops reschedule
// themselves from fn and stop by not doing so.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// VisibilityObserver reports when an element comes within the configured
// margin of the viewport and when it leaves it.
type VisibilityObserver interface {
	Observe(el Element, fn func(visible bool))
	Unobserve(el Element)
}

// Dispatcher runs fn on the event loop. Work finishing on another goroutine
// hands its result back through it.
type Dispatcher interface {
	Post(fn func())
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func())

func (f DispatchFunc) Post(fn func()) { f(fn) }

// Immediate runs posted functions synchronously.
var Immediate Dispatcher = DispatchFunc(func(fn func()) { fn() })
