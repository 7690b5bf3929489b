// Package host describes the directory and file access the gallery consumes:
// a picker that yields a traversable directory handle, listing of a
// directory's immediate children, file metadata and content, and best-effort
// parent lookup. OSDirectory and OSFile implement it over the local
// filesystem.
package host

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

var (
	// ErrPermission is returned when the host denies access to a node.
	ErrPermission = fs.ErrPermission
	// ErrUserAbort is returned by a Picker when the user dismisses the prompt.
	ErrUserAbort = errors.New("host: directory selection aborted")
	// ErrNoParent is returned by Parent at the top of the reachable tree.
	ErrNoParent = errors.New("host: no parent")
)

// Handle is the part shared by directory and file handles.
type Handle interface {
	Name() string
	// Parent returns the containing directory, ErrNoParent at the top of the
	// reachable tree, or ErrPermission when the lookup is denied.
	Parent(ctx context.Context) (Directory, error)
}

// Directory is a traversable directory handle.
type Directory interface {
	Handle
	// Entries lists immediate children in a stable order.
	Entries(ctx context.Context) ([]Entry, error)
}

// File is a file handle. Content is only read through Open.
type File interface {
	Handle
	Stat(ctx context.Context) (FileInfo, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileInfo is the metadata the catalog records for a file.
type FileInfo struct {
	Size    uint64
	ModTime time.Time
}

// Entry is one child of a directory. Exactly one of Dir and File is set.
type Entry struct {
	Name string
	Dir  Directory
	File File
}

// IsDir reports whether the entry is a subdirectory.
func (e Entry) IsDir() bool { return e.Dir != nil }

// Picker prompts the user for a directory. startIn may be nil.
type Picker interface {
	Pick(ctx context.Context, startIn Directory) (Directory, error)
}
