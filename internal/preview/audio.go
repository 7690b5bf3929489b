package preview

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// AudioGroup keeps at most one member playing. When one starts, every other
// playing member is paused and rewound.
type AudioGroup struct {
	mu      sync.Mutex
	members []engine.MediaElement
}

// NewAudioGroup returns an empty group.
func NewAudioGroup() *AudioGroup {
	return &AudioGroup{}
}

// Add registers m and returns a function that removes it.
func (g *AudioGroup) Add(m engine.MediaElement) (remove func()) {
	g.mu.Lock()
	g.members = append(g.members, m)
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, other := range g.members {
			if other == m {
				g.members = append(g.members[:i], g.members[i+1:]...)
				return
			}
		}
	}
}

// Played stops every other playing member.
func (g *AudioGroup) Played(m engine.MediaElement) {
	g.mu.Lock()
	others := make([]engine.MediaElement, 0, len(g.members))
	for _, other := range g.members {
		if other != m {
			others = append(others, other)
		}
	}
	g.mu.Unlock()

	for _, other := range others {
		if !other.Paused() {
			other.Pause()
			other.Seek(0)
		}
	}
}

// Len returns the number of members.
func (g *AudioGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Label is the header shown on an audio tile: the upper-cased extension.
func Label(name string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
}

type audioResource struct {
	base

	audio engine.MediaElement
}

func (r *audioResource) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.beginLocked()
	if !ok {
		return err
	}

	tile := r.env.Doc.CreateElement("div")
	tile.SetAttr("class", "audio-tile")
	header := r.env.Doc.CreateElement("div")
	header.SetAttr("class", "audio-header")
	header.SetText(Label(r.rec.Name))
	controls := r.env.Doc.CreateElement("div")
	controls.SetAttr("class", "audio-controls")

	audio := r.env.Doc.CreateMedia(engine.MediaAudio, r.objectURLLocked())
	audio.SetControls(true)
	r.audio = audio
	r.listenErrorLocked(audio)
	controls.Append(audio)
	tile.Append(header)
	tile.Append(controls)

	group := r.env.Audio
	r.unbind = append(r.unbind, group.Add(audio))
	r.listenLocked(audio, engine.EventPlay, func(engine.Event) {
		group.Played(audio)
	})

	r.mountLocked(tile)
	return nil
}

func (r *audioResource) Dispose() {
	r.mu.Lock()
	audio := r.audio
	first := r.disposeLocked()
	r.audio = nil
	r.mu.Unlock()
	if first && audio != nil && !audio.Paused() {
		audio.Pause()
	}
}
