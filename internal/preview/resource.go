// Package preview ties tiles to expensive per-asset resources: 3D scene
// bundles, model viewers, media elements and temporary object URLs. A
// resource is created when its tile becomes visible and released on every
// exit path.
package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/engine"
)

// Resource is a per-tile or fullscreen preview. Dispose is idempotent.
type Resource interface {
	Attach(ctx context.Context) error
	Dispose()
}

// Player is implemented by resources with play/pause control.
type Player interface {
	TogglePlay()
}

// Stopper is implemented by resources that can pause and rewind.
type Stopper interface {
	Stop()
}

// ErrDisposed is returned by Attach on a disposed resource.
var ErrDisposed = errors.New("preview: resource disposed")

// ErrUnsupported is returned by New for kinds without a preview.
var ErrUnsupported = errors.New("preview: unsupported kind")

// ErrDecode is the cause of a LoadError raised by an element's error event.
var ErrDecode = errors.New("preview: element failed to load its source")

// LoadError reports a preview that failed to load. It is shown inline on the
// tile and never retried.
type LoadError struct {
	Kind catalog.Kind
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %s: %v", e.Kind, e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Env is the set of collaborators resources are built from.
type Env struct {
	Doc      engine.Document
	Scene    engine.SceneEngine
	Frames   engine.FrameScheduler
	Dispatch engine.Dispatcher
	Audio    *AudioGroup
	URLs     *URLTracker
}

// Options tune one resource.
type Options struct {
	// Fullscreen builds the larger, interactive variant.
	Fullscreen bool
	// OnError is called on the event loop when a load fails after Attach
	// returned.
	OnError func(error)
}

// New builds the resource for rec's kind, mounted on surface.
func New(env *Env, rec catalog.Record, surface engine.Surface, opts Options) (Resource, error) {
	var r Resource
	switch rec.Kind {
	case catalog.RigidModel:
		r = &rigidResource{base: base{env: env, rec: rec, surface: surface, opts: opts}}
	case catalog.SceneModel:
		r = &sceneResource{base: base{env: env, rec: rec, surface: surface, opts: opts}}
	case catalog.Video:
		r = &videoResource{base: base{env: env, rec: rec, surface: surface, opts: opts}}
	case catalog.Audio:
		r = &audioResource{base: base{env: env, rec: rec, surface: surface, opts: opts}}
	case catalog.Image:
		r = &imageResource{base: base{env: env, rec: rec, surface: surface, opts: opts}}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, rec.Name)
	}
	return r, nil
}

// base holds what every resource acquires: an object URL, a root element
// and the listeners registered during attach.
type base struct {
	env     *Env
	rec     catalog.Record
	surface engine.Surface
	opts    Options

	mu       sync.Mutex
	attached bool
	disposed bool
	url      string
	root     engine.Element
	unbind   []func()
}

// beginLocked guards Attach. It reports whether attach work should proceed.
func (b *base) beginLocked() (bool, error) {
	if b.disposed {
		return false, ErrDisposed
	}
	if b.attached {
		return false, nil
	}
	b.attached = true
	return true, nil
}

func (b *base) objectURLLocked() string {
	if b.url == "" {
		b.url = b.env.URLs.Create(b.rec.Handle)
	}
	return b.url
}

func (b *base) listenLocked(t engine.Target, event string, fn engine.Listener) {
	b.unbind = append(b.unbind, t.Listen(event, fn))
}

func (b *base) mountLocked(el engine.Element) {
	b.root = el
	b.surface.Mount(el)
}

// failLocked releases everything and leaves an inline error on the surface.
func (b *base) failLocked(err error) error {
	b.releaseLocked()
	b.surface.ShowError(fmt.Sprintf("Error loading %s", b.rec.Kind))
	return &LoadError{Kind: b.rec.Kind, Name: b.rec.Name, Err: err}
}

// listenErrorLocked fails the resource when el reports a load error. The
// OnError callback is posted to the event loop after the lock is released.
func (b *base) listenErrorLocked(el engine.Element) {
	b.listenLocked(el, engine.EventError, func(engine.Event) {
		b.mu.Lock()
		if b.disposed || b.root == nil {
			b.mu.Unlock()
			return
		}
		lerr := b.failLocked(ErrDecode)
		onError := b.opts.OnError
		b.mu.Unlock()
		if onError != nil {
			b.env.Dispatch.Post(func() { onError(lerr) })
		}
	})
}

// releaseLocked removes listeners, revokes the URL and removes the root
// element. It is safe to call repeatedly.
func (b *base) releaseLocked() {
	for _, remove := range b.unbind {
		remove()
	}
	b.unbind = nil
	if b.url != "" {
		b.env.URLs.Revoke(b.url)
		b.url = ""
	}
	if b.root != nil {
		b.root.Remove()
		b.root = nil
	}
}

func (b *base) disposeLocked() bool {
	if b.disposed {
		return false
	}
	b.disposed = true
	b.releaseLocked()
	return true
}
