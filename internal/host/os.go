package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/assetgrid/internal/debug"
)

// OSDirectory is a Directory backed by the local filesystem. Parent lookups
// stop at the directory the user picked, the same boundary a sandboxed host
// enforces.
type OSDirectory struct {
	path     string
	boundary string
}

// OSFile is a File backed by the local filesystem.
type OSFile struct {
	path     string
	boundary string
}

// OpenDirectory returns a handle for path that acts as the top of the
// reachable tree.
func OpenDirectory(path string) (*OSDirectory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", abs)
	}
	return &OSDirectory{path: abs, boundary: abs}, nil
}

// OpenFile returns a handle for a single file outside any traversal, as
// produced by a drop.
func OpenFile(path string) (*OSFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", abs)
	}
	return &OSFile{path: abs, boundary: abs}, nil
}

func (d *OSDirectory) Name() string { return filepath.Base(d.path) }

// Path returns the absolute filesystem path.
func (d *OSDirectory) Path() string { return d.path }

func (d *OSDirectory) Parent(ctx context.Context) (Directory, error) {
	return parentOf(d.path, d.boundary)
}

// Entries lists direct children using a single-level fastwalk pass. Entries
// are sorted by name so that traversal order does not depend on worker
// scheduling.
func (d *OSDirectory) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	debug.Log(debug.HOST, "Entries: reading %q", d.path)

	// fastwalk reports a failed root read through the callback only on some
	// platforms, so check it first.
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.path, err)
	}
	f.Close()

	var (
		result  []Entry
		mu      sync.Mutex
		rootErr error
	)

	conf := &fastwalk.Config{Follow: true}
	pathLen := len(d.path)

	err = fastwalk.Walk(conf, d.path, func(fullPath string, de fs.DirEntry, err error) error {
		if err != nil {
			if fullPath == d.path {
				mu.Lock()
				rootErr = err
				mu.Unlock()
				return err
			}
			debug.Log(debug.HOST_ENTRY, "Entries: walk error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == d.path {
			return nil
		}

		relStart := pathLen
		if relStart < len(fullPath) && os.IsPathSeparator(fullPath[relStart]) {
			relStart++
		}
		if strings.ContainsAny(fullPath[relStart:], `/\`) {
			if de.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		isDir := de.IsDir()
		if de.Type()&fs.ModeSymlink != 0 {
			info, statErr := fastwalk.StatDirEntry(fullPath, de)
			if statErr != nil {
				debug.Log(debug.HOST_ENTRY, "Entries: skipping broken link %q: %v", fullPath, statErr)
				return nil
			}
			isDir = info.IsDir()
		}

		entry := Entry{Name: de.Name()}
		if isDir {
			entry.Dir = &OSDirectory{path: fullPath, boundary: d.boundary}
		} else {
			entry.File = &OSFile{path: fullPath, boundary: d.boundary}
		}
		if debug.IsEnabled(debug.HOST_ENTRY) {
			debug.Log(debug.HOST_ENTRY, "Entries: %q isDir=%v", de.Name(), isDir)
		}

		mu.Lock()
		result = append(result, entry)
		mu.Unlock()

		if de.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if rootErr != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, rootErr)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *OSFile) Name() string { return filepath.Base(f.path) }

// Path returns the absolute filesystem path.
func (f *OSFile) Path() string { return f.path }

func (f *OSFile) Parent(ctx context.Context) (Directory, error) {
	return parentOf(f.path, f.boundary)
}

func (f *OSFile) Stat(ctx context.Context) (FileInfo, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: uint64(info.Size()), ModTime: info.ModTime()}, nil
}

func (f *OSFile) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.path)
}

func parentOf(path, boundary string) (Directory, error) {
	if path == boundary {
		return nil, ErrNoParent
	}
	parent := filepath.Dir(path)
	if parent == path || !strings.HasPrefix(parent, boundary) {
		return nil, ErrNoParent
	}
	return &OSDirectory{path: parent, boundary: boundary}, nil
}

// PathPicker "picks" a fixed path, for hosts without an interactive prompt.
// An empty path behaves like a dismissed prompt.
type PathPicker struct {
	Path string
}

func (p PathPicker) Pick(ctx context.Context, startIn Directory) (Directory, error) {
	if p.Path == "" {
		return nil, ErrUserAbort
	}
	dir, err := OpenDirectory(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("pick %s: %w", p.Path, err)
		}
		return nil, err
	}
	return dir, nil
}
