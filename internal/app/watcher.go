package app

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/debug"
)

// DirectoryWatcher reports debounced changes below a scanned root so the
// gallery can rescan it.
type DirectoryWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]bool // Currently watched directories
	notify   chan string     // Changed directories
	done     chan struct{}
	debounce time.Duration
}

// NewDirectoryWatcher creates a watcher; debounce <= 0 selects 200ms.
func NewDirectoryWatcher(debounce time.Duration) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	dw := &DirectoryWatcher{
		watcher:  w,
		watching: make(map[string]bool),
		notify:   make(chan string, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go dw.run()
	return dw, nil
}

func (dw *DirectoryWatcher) run() {
	lastEvent := make(map[string]time.Time)
	tick := dw.debounce / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)) {
				continue
			}
			// Edits to files a scan skips are ignored. Creates may be new
			// subdirectories, so they always count.
			if catalog.Classify(event.Name) == catalog.Unsupported && !dw.isWatched(event.Name) && !event.Has(fsnotify.Create) {
				continue
			}

			dir := filepath.Dir(event.Name)
			dw.mu.Lock()
			switch {
			case dw.watching[dir]:
				lastEvent[dir] = time.Now()
			case dw.watching[event.Name]:
				lastEvent[event.Name] = time.Now()
			}
			dw.mu.Unlock()
			debug.Log(debug.APP, "FSNotify event: %s on %s", event.Op, event.Name)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.APP, "FSNotify error: %v", err)

		case now := <-ticker.C:
			for dir, at := range lastEvent {
				if now.Sub(at) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- dir:
					debug.Log(debug.APP, "Directory change notification: %s", dir)
				default:
					// Channel full; a rescan is already queued.
				}
				delete(lastEvent, dir)
			}
		}
	}
}

func (dw *DirectoryWatcher) isWatched(path string) bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.watching[path]
}

// Watch adds one directory.
func (dw *DirectoryWatcher) Watch(path string) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[path] {
		return nil
	}
	if err := dw.watcher.Add(path); err != nil {
		return err
	}
	dw.watching[path] = true
	debug.Log(debug.APP, "Now watching directory: %s", path)
	return nil
}

// WatchTree replaces the watch list with root and its subdirectories down
// to depth, the same levels a scan of root visits.
func (dw *DirectoryWatcher) WatchTree(root string, depth catalog.Depth) error {
	dw.UnwatchAll()
	if err := dw.Watch(root); err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}

	var dirs []string
	var mu sync.Mutex
	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == root || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		level := strings.Count(filepath.ToSlash(rel), "/") + 1
		if depth != catalog.DepthAll && level > int(depth) {
			return fastwalk.SkipDir
		}
		mu.Lock()
		dirs = append(dirs, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := dw.Watch(dir); err != nil {
			debug.Log(debug.APP, "Watch %s: %v", dir, err)
		}
	}
	return nil
}

// Unwatch removes one directory.
func (dw *DirectoryWatcher) Unwatch(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching[path] {
		return
	}
	if err := dw.watcher.Remove(path); err != nil {
		// The directory may already be gone.
		debug.Log(debug.APP, "Error unwatching %s: %v", path, err)
	}
	delete(dw.watching, path)
}

// UnwatchAll clears the watch list.
func (dw *DirectoryWatcher) UnwatchAll() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for path := range dw.watching {
		dw.watcher.Remove(path)
	}
	dw.watching = make(map[string]bool)
}

// Watching returns the number of watched directories.
func (dw *DirectoryWatcher) Watching() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return len(dw.watching)
}

// Notify receives changed directories.
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts the watcher down.
func (dw *DirectoryWatcher) Close() error {
	close(dw.done)
	return dw.watcher.Close()
}
