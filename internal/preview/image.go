package preview

import "context"

type imageResource struct {
	base
}

func (r *imageResource) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.beginLocked()
	if !ok {
		return err
	}
	wrap := r.env.Doc.CreateElement("div")
	wrap.SetAttr("class", "image-preview")
	img := r.env.Doc.CreateImage(r.objectURLLocked())
	img.SetAttr("alt", r.rec.Name)
	r.listenErrorLocked(img)
	wrap.Append(img)
	r.mountLocked(wrap)
	return nil
}

func (r *imageResource) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposeLocked()
}
