// Package catalog classifies files by extension and owns the set of asset
// records ingested from a directory scan or a drop.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/logging"
	"go.uber.org/zap"
)

// AccessError reports a node the host refused to list or describe.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// ScanReport summarizes a tree ingestion.
type ScanReport struct {
	Dirs        int
	Files       int // supported files recorded
	Unsupported int
	// Errors holds one *AccessError per skipped subtree or file.
	Errors []error
}

// Catalog owns the records of the current session. Mutations replace the
// record set wholesale.
type Catalog struct {
	mu      sync.RWMutex
	records []Record
	byID    map[uuid.UUID]int
	root    host.Directory
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byID: make(map[uuid.UUID]int)}
}

// Scan traverses root down to depth and returns name-sorted records for
// every supported file. Scan does not modify any catalog, so it can run off
// the event loop; Replace installs the result.
//
// The root listing failing is fatal. Denied subdirectories and files whose
// metadata cannot be read are recorded in the report and skipped.
func Scan(ctx context.Context, root host.Directory, depth Depth) ([]Record, *ScanReport, error) {
	report := &ScanReport{}
	var records []Record

	var walk func(dir host.Directory, rel string, level int) error
	walk = func(dir host.Directory, rel string, level int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := dir.Entries(ctx)
		if err != nil {
			aerr := &AccessError{Path: displayPath(root, rel), Err: err}
			if level == 0 {
				return aerr
			}
			debug.Log(debug.CATALOG, "Scan: skipping %q: %v", rel, err)
			report.Errors = append(report.Errors, aerr)
			return nil
		}
		report.Dirs++

		var subdirs []host.Entry
		for _, e := range entries {
			if e.IsDir() {
				subdirs = append(subdirs, e)
				continue
			}
			if e.File == nil {
				continue
			}
			kind := Classify(e.Name)
			if kind == Unsupported {
				report.Unsupported++
				continue
			}
			relPath := path.Join(rel, e.Name)
			info, err := e.File.Stat(ctx)
			if err != nil {
				debug.Log(debug.CATALOG, "Scan: stat %q: %v", relPath, err)
				report.Errors = append(report.Errors, &AccessError{Path: displayPath(root, relPath), Err: err})
				continue
			}
			records = append(records, newRecord(relPath, e.File, kind, info, reconstructPath(ctx, e.File)))
			report.Files++
		}

		if !depth.allows(level + 1) {
			return nil
		}
		for _, e := range subdirs {
			if err := walk(e.Dir, path.Join(rel, e.Name), level+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, "", 0); err != nil {
		return nil, report, err
	}

	SortByName(records)
	debug.Log(debug.CATALOG, "Scan: %d records, %d dirs, %d unsupported, %d errors",
		len(records), report.Dirs, report.Unsupported, len(report.Errors))
	return records, report, nil
}

// IngestFromTree scans root and replaces the catalog's records with the
// result. On a root failure the catalog is left unchanged.
func (c *Catalog) IngestFromTree(ctx context.Context, root host.Directory, depth Depth) ([]Record, *ScanReport, error) {
	records, report, err := Scan(ctx, root, depth)
	if err != nil {
		return nil, report, err
	}
	c.Replace(root, records)
	return c.Records(), report, nil
}

// IngestFromFlatList replaces the catalog's records with the supported files
// of a drop. Drops carry no path information, so FullPath is always nil.
func (c *Catalog) IngestFromFlatList(ctx context.Context, files []host.File) []Record {
	var records []Record
	for i, f := range files {
		kind := Classify(f.Name())
		if kind == Unsupported {
			continue
		}
		info, err := f.Stat(ctx)
		if err != nil {
			logging.L().Warn("skipping dropped file", zap.String("name", f.Name()), zap.Error(err))
			continue
		}
		// Dropped names may repeat; the list position keeps IDs distinct.
		r := newRecord(fmt.Sprintf("drop/%d/%s", i, f.Name()), f, kind, info, nil)
		r.RelPath = f.Name()
		records = append(records, r)
	}
	SortByName(records)
	c.Replace(nil, records)
	return c.Records()
}

// Replace installs records, which must already be name-sorted, and the root
// they came from (nil for drops).
func (c *Catalog) Replace(root host.Directory, records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
	c.root = root
	c.byID = make(map[uuid.UUID]int, len(records))
	for i, r := range records {
		c.byID[r.ID] = i
	}
	debug.Log(debug.CATALOG, "Replace: %d records", len(records))
}

// Invalidate drops all records and the held root handle. Live previews are
// not touched.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.root = nil
	c.byID = make(map[uuid.UUID]int)
}

// Records returns a copy of the record list in ingestion order.
func (c *Catalog) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Lookup returns the record with the given ID.
func (c *Catalog) Lookup(id uuid.UUID) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Root returns the directory of the last tree ingestion, or nil.
func (c *Catalog) Root() host.Directory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// SortByName stable-sorts records by locale-aware name order.
func SortByName(records []Record) {
	coll := NewNameCollator()
	sort.SliceStable(records, func(i, j int) bool {
		return coll.Compare(records[i].Name, records[j].Name) < 0
	})
}

// IsAccessDenied reports whether err is a permission failure from the host.
func IsAccessDenied(err error) bool {
	return errors.Is(err, host.ErrPermission)
}

func displayPath(root host.Directory, rel string) string {
	if rel == "" {
		return root.Name()
	}
	return path.Join(root.Name(), rel)
}
