// Package hosttest provides in-memory host.Directory, host.File and
// host.Picker implementations for tests.
package hosttest

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/justyntemme/assetgrid/internal/host"
)

// Dir is an in-memory directory. Children keep insertion order.
type Dir struct {
	name     string
	parent   *Dir
	children []host.Entry

	// Denied makes Entries fail with host.ErrPermission.
	Denied bool
	// ParentDenied makes Parent lookups from this node fail.
	ParentDenied bool
	// Gate, when set, blocks Entries until it is closed.
	Gate chan struct{}

	mu     sync.Mutex
	listed int
}

// NewDir returns a top-level directory.
func NewDir(name string) *Dir {
	return &Dir{name: name}
}

// Dir adds and returns a subdirectory.
func (d *Dir) Dir(name string) *Dir {
	sub := &Dir{name: name, parent: d}
	d.children = append(d.children, host.Entry{Name: name, Dir: sub})
	return sub
}

// File adds and returns a file with the given content and mod time.
func (d *Dir) File(name string, content []byte, mod time.Time) *File {
	f := &File{name: name, parent: d, Content: content, Mod: mod}
	d.children = append(d.children, host.Entry{Name: name, File: f})
	return f
}

// SizedFile adds a file that reports size bytes without holding content.
func (d *Dir) SizedFile(name string, size uint64, mod time.Time) *File {
	f := d.File(name, nil, mod)
	f.Size = &size
	return f
}

func (d *Dir) Name() string { return d.name }

func (d *Dir) Parent(ctx context.Context) (host.Directory, error) {
	if d.ParentDenied {
		return nil, host.ErrPermission
	}
	if d.parent == nil {
		return nil, host.ErrNoParent
	}
	return d.parent, nil
}

func (d *Dir) Entries(ctx context.Context) ([]host.Entry, error) {
	d.mu.Lock()
	d.listed++
	gate := d.Gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Denied {
		return nil, host.ErrPermission
	}
	out := make([]host.Entry, len(d.children))
	copy(out, d.children)
	return out, nil
}

// Listed reports how many times Entries was called.
func (d *Dir) Listed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listed
}

// File is an in-memory file.
type File struct {
	name   string
	parent *Dir

	Content []byte
	Mod     time.Time
	// Size overrides len(Content) when set.
	Size *uint64
	// StatErr and OpenErr force Stat and Open failures.
	StatErr error
	OpenErr error
	// ParentDenied makes Parent fail with host.ErrPermission.
	ParentDenied bool

	mu    sync.Mutex
	stats int
	opens int
}

// NewFile returns a file with no parent, as a drop produces.
func NewFile(name string, content []byte, mod time.Time) *File {
	return &File{name: name, Content: content, Mod: mod}
}

func (f *File) Name() string { return f.name }

func (f *File) Parent(ctx context.Context) (host.Directory, error) {
	if f.ParentDenied {
		return nil, host.ErrPermission
	}
	if f.parent == nil {
		return nil, host.ErrNoParent
	}
	return f.parent, nil
}

func (f *File) Stat(ctx context.Context) (host.FileInfo, error) {
	f.mu.Lock()
	f.stats++
	f.mu.Unlock()
	if f.StatErr != nil {
		return host.FileInfo{}, f.StatErr
	}
	size := uint64(len(f.Content))
	if f.Size != nil {
		size = *f.Size
	}
	return host.FileInfo{Size: size, ModTime: f.Mod}, nil
}

func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// Stats reports how many times Stat was called.
func (f *File) Stats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Opens reports how many times Open was called.
func (f *File) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Picker returns a scripted result. When Gate is non-nil Pick blocks until
// a value is received from it, which lets tests hold a pick pending.
type Picker struct {
	Dir  host.Directory
	Err  error
	Gate chan struct{}

	mu    sync.Mutex
	calls int
}

func (p *Picker) Pick(ctx context.Context, startIn host.Directory) (host.Directory, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Dir, nil
}

// Calls reports how many times Pick was called.
func (p *Picker) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
