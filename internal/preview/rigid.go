package preview

import (
	"context"
	"math"
	"time"

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
)

// TargetSize is the world-space length the longest model dimension is
// scaled to.
const TargetSize = 1.5

// DefaultCamera matches the tile viewer: 45 degree field of view, camera at
// (0, 1.6, 3), ambient plus one directional light, damped orbit controls.
var DefaultCamera = engine.CameraConfig{
	FOV:            45,
	Position:       engine.Vec3{X: 0, Y: 1.6, Z: 3},
	ClearColor:     0x3a3a3a,
	AmbientLight:   0.8,
	Directional:    0.8,
	DirectionalPos: engine.Vec3{X: 0.5, Y: 1, Z: 0.5},
	Damping:        0.05,
}

// Normalize returns the uniform scale and position that center box on the
// origin with its longest dimension equal to target. A degenerate box keeps
// scale 1.
func Normalize(box engine.Box, target float64) (float64, engine.Vec3) {
	ext := box.Extent()
	maxDim := math.Max(ext.X, math.Max(ext.Y, ext.Z))
	scale := 1.0
	if maxDim > 0 && !math.IsInf(maxDim, 0) {
		scale = target / maxDim
	}
	c := box.Center()
	return scale, engine.Vec3{X: -c.X * scale, Y: -c.Y * scale, Z: -c.Z * scale}
}

type rigidResource struct {
	base

	bundle      engine.SceneBundle
	mixer       engine.Mixer
	cancelFrame func()
	cancelLoad  context.CancelFunc
	last        time.Time
}

func (r *rigidResource) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.beginLocked()
	if !ok {
		return err
	}

	url := r.objectURLLocked()
	bundle, err := r.env.Scene.NewBundle(r.surface.Size(), DefaultCamera)
	if err != nil {
		return r.failLocked(err)
	}
	r.bundle = bundle
	r.mountLocked(bundle.Canvas())
	r.cancelFrame = r.env.Frames.RequestFrame(r.frame)

	loadCtx, cancel := context.WithCancel(ctx)
	r.cancelLoad = cancel
	go func() {
		model, err := r.env.Scene.LoadModel(loadCtx, url)
		r.env.Dispatch.Post(func() { r.loaded(model, err) })
	}()
	return nil
}

// loaded runs on the event loop. Results arriving after Dispose are dropped.
func (r *rigidResource) loaded(model engine.Model, err error) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		debug.Log(debug.PREVIEW, "rigid %s: load finished after dispose, discarded", r.rec.Name)
		return
	}
	if err != nil {
		r.stopLocked()
		lerr := r.failLocked(err)
		onError := r.opts.OnError
		r.mu.Unlock()
		if onError != nil {
			onError(lerr)
		}
		return
	}
	defer r.mu.Unlock()

	scale, pos := Normalize(model.Bounds(), TargetSize)
	model.SetScale(scale)
	model.SetPosition(pos)
	r.bundle.Add(model)
	if clips := model.Clips(); len(clips) > 0 {
		r.mixer = r.bundle.NewMixer(model)
		r.mixer.Play(clips[0])
	}
	r.bundle.ResetView()
	debug.Log(debug.PREVIEW, "rigid %s: loaded, scale %.3f", r.rec.Name, scale)
}

func (r *rigidResource) frame(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed || r.bundle == nil {
		return
	}
	var dt time.Duration
	if !r.last.IsZero() {
		dt = now.Sub(r.last)
	}
	r.last = now
	if r.mixer != nil {
		r.mixer.Update(dt)
	}
	r.bundle.UpdateControls()
	r.bundle.Render()
	debug.Log(debug.FRAME, "rigid %s: frame dt=%v", r.rec.Name, dt)
	r.cancelFrame = r.env.Frames.RequestFrame(r.frame)
}

// stopLocked ends the frame loop and the pending load and releases the
// renderer.
func (r *rigidResource) stopLocked() {
	if r.cancelFrame != nil {
		r.cancelFrame()
		r.cancelFrame = nil
	}
	if r.cancelLoad != nil {
		r.cancelLoad()
		r.cancelLoad = nil
	}
	if r.bundle != nil {
		r.bundle.Dispose()
		r.bundle = nil
	}
	r.mixer = nil
}

func (r *rigidResource) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.stopLocked()
	r.disposeLocked()
}
