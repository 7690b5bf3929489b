package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justyntemme/assetgrid/internal/host"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// recordNamespace seeds the name-based record IDs.
var recordNamespace = uuid.MustParse("6f1d8c02-3b7e-5a44-9c1e-2f0b7d5e8a13")

// Record describes one ingested file. Records are immutable once created.
type Record struct {
	ID      uuid.UUID
	Name    string
	RelPath string // slash-joined, relative to the ingestion root
	Kind    Kind
	Size    uint64
	ModTime time.Time
	// FullPath is the backslash-joined path from the top-most reachable
	// ancestor, or nil when it could not be reconstructed.
	FullPath *string
	Handle   host.File
}

// Path returns FullPath or "" when it is unknown.
func (r *Record) Path() string {
	if r.FullPath == nil {
		return ""
	}
	return *r.FullPath
}

// Open reads the record's content through its handle.
func (r *Record) Open(ctx context.Context) (io.ReadCloser, error) {
	if r.Handle == nil {
		return nil, fmt.Errorf("open %s: no handle", r.Name)
	}
	rc, err := r.Handle.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.Name, err)
	}
	return rc, nil
}

func newRecord(relPath string, f host.File, kind Kind, info host.FileInfo, fullPath *string) Record {
	return Record{
		ID:       uuid.NewSHA1(recordNamespace, []byte(relPath)),
		Name:     f.Name(),
		RelPath:  relPath,
		Kind:     kind,
		Size:     info.Size,
		ModTime:  info.ModTime,
		FullPath: fullPath,
		Handle:   f,
	}
}

// reconstructPath walks parent handles up from f and joins the names with
// backslashes. A denied lookup makes the path unknown.
func reconstructPath(ctx context.Context, f host.File) *string {
	parts := []string{f.Name()}
	var h host.Handle = f
	for {
		parent, err := h.Parent(ctx)
		if errors.Is(err, host.ErrNoParent) {
			break
		}
		if err != nil {
			return nil
		}
		parts = append(parts, parent.Name())
		h = parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	p := strings.Join(parts, `\`)
	return &p
}

// NameCollator compares file names the way a locale-aware string compare
// does. The zero value is not usable; call NewNameCollator.
type NameCollator struct {
	mu sync.Mutex
	c  *collate.Collator
}

// NewNameCollator returns a collator for the root locale.
func NewNameCollator() *NameCollator {
	return &NameCollator{c: collate.New(language.Und)}
}

// Compare returns -1, 0 or 1.
func (n *NameCollator) Compare(a, b string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.c.CompareString(a, b)
}
