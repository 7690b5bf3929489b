package preview

import (
	"context"
	"sync/atomic"

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/engine"
)

type videoResource struct {
	base

	video    engine.MediaElement
	dragging atomic.Bool
}

func (r *videoResource) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.beginLocked()
	if !ok {
		return err
	}

	video := r.env.Doc.CreateMedia(engine.MediaVideo, r.objectURLLocked())
	r.video = video
	r.listenErrorLocked(video)

	if r.opts.Fullscreen {
		video.SetAttr("class", "fullscreen-video")
		video.SetControls(true)
		r.mountLocked(video)
		if err := video.Play(); err != nil {
			// Autoplay can be refused; the native controls still work.
			debug.Log(debug.PREVIEW, "video %s: autoplay refused: %v", r.rec.Name, err)
		}
		return nil
	}

	wrap := r.env.Doc.CreateElement("div")
	wrap.SetAttr("class", "video-preview")
	video.SetAttr("class", "preview-video")
	video.SetMuted(true)
	wrap.Append(video)

	bar := r.env.Doc.CreateElement("div")
	bar.SetAttr("class", "scrub-bar-container")
	fill := r.env.Doc.CreateElement("div")
	fill.SetAttr("class", "scrub-bar")
	marker := r.env.Doc.CreateElement("div")
	marker.SetAttr("class", "time-marker")
	fill.Append(marker)
	bar.Append(fill)
	wrap.Append(bar)

	scrub := func(ev engine.Event) {
		seconds, fraction, ok := ScrubPosition(ev.X, bar.Rect(), video.Duration())
		if !ok {
			return
		}
		video.Seek(seconds)
		fill.SetAttr("style", "width: "+percent(fraction))
		marker.SetAttr("style", "left: "+percent(fraction))
		marker.SetText(FormatTime(seconds))
	}

	r.listenLocked(bar, engine.EventPointerDown, func(ev engine.Event) {
		r.dragging.Store(true)
		scrub(ev)
	})
	r.listenLocked(r.env.Doc, engine.EventPointerMove, func(ev engine.Event) {
		if r.dragging.Load() {
			scrub(ev)
		}
	})
	r.listenLocked(r.env.Doc, engine.EventPointerUp, func(engine.Event) {
		r.dragging.Store(false)
	})
	r.listenLocked(bar, engine.EventPointerMove, scrub)

	r.mountLocked(wrap)
	return nil
}

// TogglePlay plays a paused video and pauses a playing one.
func (r *videoResource) TogglePlay() {
	r.mu.Lock()
	video := r.video
	disposed := r.disposed
	r.mu.Unlock()
	if video == nil || disposed {
		return
	}
	if video.Paused() {
		if err := video.Play(); err != nil {
			debug.Log(debug.PREVIEW, "video %s: play: %v", r.rec.Name, err)
		}
		return
	}
	video.Pause()
}

// Stop pauses the video and rewinds it.
func (r *videoResource) Stop() {
	r.mu.Lock()
	video := r.video
	r.mu.Unlock()
	if video == nil {
		return
	}
	video.Pause()
	video.Seek(0)
}

func (r *videoResource) Dispose() {
	r.mu.Lock()
	video := r.video
	first := r.disposeLocked()
	r.video = nil
	r.mu.Unlock()
	if first && video != nil {
		video.Pause()
		video.Seek(0)
	}
	r.dragging.Store(false)
}
