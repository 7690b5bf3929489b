package headless

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// ErrNoLoader is returned by SceneEngine.LoadModel: there is no model
// parser without a renderer.
var ErrNoLoader = errors.New("headless: no 3D model loader")

// SceneEngine creates inert bundles. Every model load fails with
// ErrNoLoader.
type SceneEngine struct {
	counter *listenerCounter

	mu     sync.Mutex
	active int
}

// NewSceneEngine returns a scene engine whose canvases belong to doc.
func NewSceneEngine(doc *Document) *SceneEngine {
	return &SceneEngine{counter: doc.counter}
}

func (s *SceneEngine) NewBundle(size engine.Size, cam engine.CameraConfig) (engine.SceneBundle, error) {
	canvas := newElement("canvas", s.counter)
	canvas.SetAttr("width", strconv.Itoa(size.Width))
	canvas.SetAttr("height", strconv.Itoa(size.Height))
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	return &bundle{engine: s, canvas: canvas}, nil
}

func (s *SceneEngine) LoadModel(ctx context.Context, url string) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoLoader
}

// Active returns the number of bundles not yet disposed.
func (s *SceneEngine) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type bundle struct {
	engine   *SceneEngine
	canvas   *Element
	once     sync.Once
	rendered int
}

func (b *bundle) Canvas() engine.Element             { return b.canvas }
func (b *bundle) Add(engine.Model)                   {}
func (b *bundle) NewMixer(engine.Model) engine.Mixer { return mixer{} }
func (b *bundle) UpdateControls()                    {}
func (b *bundle) ResetView()                         {}
func (b *bundle) Render()                            { b.rendered++ }

func (b *bundle) Dispose() {
	b.once.Do(func() {
		b.engine.mu.Lock()
		b.engine.active--
		b.engine.mu.Unlock()
	})
}

type mixer struct{}

func (mixer) Play(string)          {}
func (mixer) Update(time.Duration) {}
