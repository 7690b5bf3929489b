package preview

import (
	"sync"

	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/host"
)

// URLTracker creates object URLs through a Document and remembers the ones
// not yet revoked, so catalog invalidation can release all of them.
type URLTracker struct {
	doc engine.Document

	mu   sync.Mutex
	open map[string]struct{}
}

// NewURLTracker returns a tracker backed by doc.
func NewURLTracker(doc engine.Document) *URLTracker {
	return &URLTracker{doc: doc, open: make(map[string]struct{})}
}

// Create returns a new object URL for f.
func (t *URLTracker) Create(f host.File) string {
	url := t.doc.CreateObjectURL(f)
	t.mu.Lock()
	t.open[url] = struct{}{}
	t.mu.Unlock()
	return url
}

// Revoke releases url. Unknown or already revoked URLs are ignored.
func (t *URLTracker) Revoke(url string) {
	t.mu.Lock()
	_, ok := t.open[url]
	delete(t.open, url)
	t.mu.Unlock()
	if ok {
		t.doc.RevokeObjectURL(url)
	}
}

// RevokeAll releases every outstanding URL and returns how many there were.
func (t *URLTracker) RevokeAll() int {
	t.mu.Lock()
	urls := make([]string, 0, len(t.open))
	for url := range t.open {
		urls = append(urls, url)
	}
	t.open = make(map[string]struct{})
	t.mu.Unlock()
	for _, url := range urls {
		t.doc.RevokeObjectURL(url)
	}
	return len(urls)
}

// Outstanding returns the number of URLs not yet revoked.
func (t *URLTracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
