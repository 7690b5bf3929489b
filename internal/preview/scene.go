package preview

import (
	"context"
)

// ViewerAttrs are set on every embedded scene-model viewer.
var ViewerAttrs = map[string]string{
	"camera-controls":   "",
	"auto-rotate":       "",
	"environment-image": "neutral",
	"animation-name":    "*",
}

type sceneResource struct {
	base
}

func (r *sceneResource) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.beginLocked()
	if !ok {
		return err
	}
	attrs := make(map[string]string, len(ViewerAttrs))
	for k, v := range ViewerAttrs {
		attrs[k] = v
	}
	viewer, err := r.env.Doc.NewModelViewer(r.objectURLLocked(), attrs)
	if err != nil {
		return r.failLocked(err)
	}
	r.listenErrorLocked(viewer)
	r.mountLocked(viewer)
	return nil
}

func (r *sceneResource) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposeLocked()
}
