package preview

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/host"
)

// Thumbnail is a decoded, orientation-corrected and downscaled image.
type Thumbnail struct {
	Image image.Image
	// Size is the full-resolution size after orientation correction.
	Size image.Point
}

// Thumbnailer provides an LRU cache of image thumbnails with a background
// loader. Thumbnails are stored at reduced resolution to bound memory.
type Thumbnailer struct {
	mu        sync.Mutex
	cache     map[string]*thumbEntry
	lru       *list.List // front = most recent
	maxSize   int
	maxPixels int

	pendingMu sync.Mutex
	pending   map[string]bool
	loadChan  chan thumbRequest
	stopChan  chan struct{}
	stopOnce  sync.Once
}

type thumbEntry struct {
	key     string
	thumb   Thumbnail
	element *list.Element
}

type thumbRequest struct {
	key  string
	file host.File
}

// NewThumbnailer creates a cache of at most maxEntries thumbnails whose
// longer side is at most maxPixels, and starts its loader.
func NewThumbnailer(maxEntries, maxPixels int) *Thumbnailer {
	t := &Thumbnailer{
		cache:     make(map[string]*thumbEntry),
		lru:       list.New(),
		maxSize:   maxEntries,
		maxPixels: maxPixels,
		pending:   make(map[string]bool),
		loadChan:  make(chan thumbRequest, 100),
		stopChan:  make(chan struct{}),
	}
	go t.backgroundLoader()
	return t
}

// Get returns the cached thumbnail for key.
func (t *Thumbnailer) Get(key string) (Thumbnail, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.cache[key]
	if !ok {
		return Thumbnail{}, false
	}
	t.lru.MoveToFront(entry.element)
	return entry.thumb, true
}

// RequestLoad queues f for background loading under key. It does nothing
// if key is cached or already queued, and drops the request when the queue
// is full.
func (t *Thumbnailer) RequestLoad(key string, f host.File) {
	t.mu.Lock()
	_, cached := t.cache[key]
	t.mu.Unlock()
	if cached {
		return
	}

	t.pendingMu.Lock()
	if t.pending[key] {
		t.pendingMu.Unlock()
		return
	}
	t.pending[key] = true
	t.pendingMu.Unlock()

	select {
	case t.loadChan <- thumbRequest{key: key, file: f}:
	default:
		t.pendingMu.Lock()
		delete(t.pending, key)
		t.pendingMu.Unlock()
	}
}

// Load decodes f, caches the result under key and returns it.
func (t *Thumbnailer) Load(ctx context.Context, key string, f host.File) (Thumbnail, error) {
	if th, ok := t.Get(key); ok {
		return th, nil
	}
	rc, err := f.Open(ctx)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()
	th, err := t.decode(rc)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode %s: %w", f.Name(), err)
	}
	t.put(key, th)
	debug.Log(debug.PREVIEW, "thumbnail %s: original %dx%d, thumb %dx%d",
		key, th.Size.X, th.Size.Y, th.Image.Bounds().Dx(), th.Image.Bounds().Dy())
	return th, nil
}

// Pending reports whether key is queued or loading.
func (t *Thumbnailer) Pending(key string) bool {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return t.pending[key]
}

// Clear removes every entry.
func (t *Thumbnailer) Clear() {
	t.mu.Lock()
	t.cache = make(map[string]*thumbEntry)
	t.lru = list.New()
	t.mu.Unlock()

	t.pendingMu.Lock()
	t.pending = make(map[string]bool)
	t.pendingMu.Unlock()
	debug.Log(debug.PREVIEW, "thumbnails: cleared")
}

// Stop shuts down the background loader.
func (t *Thumbnailer) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Len returns the number of cached thumbnails.
func (t *Thumbnailer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

func (t *Thumbnailer) backgroundLoader() {
	for {
		select {
		case <-t.stopChan:
			return
		case req := <-t.loadChan:
			if _, err := t.Load(context.Background(), req.key, req.file); err != nil {
				debug.Log(debug.PREVIEW, "thumbnail %s: %v", req.key, err)
			}
			t.pendingMu.Lock()
			delete(t.pending, req.key)
			t.pendingMu.Unlock()
		}
	}
}

func (t *Thumbnailer) decode(r io.Reader) (Thumbnail, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Thumbnail{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Thumbnail{}, err
	}
	img = applyOrientation(img, Orientation(bytes.NewReader(data)))
	return Thumbnail{Image: t.scale(img), Size: img.Bounds().Size()}, nil
}

// scale fits src within maxPixels on its longer side.
func (t *Thumbnailer) scale(src image.Image) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= t.maxPixels && height <= t.maxPixels {
		return src
	}

	var factor float64
	if width > height {
		factor = float64(t.maxPixels) / float64(width)
	} else {
		factor = float64(t.maxPixels) / float64(height)
	}
	w := max(1, int(float64(width)*factor))
	h := max(1, int(float64(height)*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func (t *Thumbnailer) put(key string, th Thumbnail) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.cache[key]; ok {
		entry.thumb = th
		t.lru.MoveToFront(entry.element)
		return
	}
	for t.lru.Len() >= t.maxSize {
		oldest := t.lru.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*thumbEntry)
		delete(t.cache, old.key)
		t.lru.Remove(oldest)
		debug.Log(debug.PREVIEW, "thumbnails: evicted %s", old.key)
	}
	entry := &thumbEntry{key: key, thumb: th}
	entry.element = t.lru.PushFront(entry)
	t.cache[key] = entry
}

// Orientation returns the EXIF orientation (1-8) of the image in r, or 1
// when there is none.
func Orientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
