package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/debug"
)

// ErrNothingSelected is returned when exporting an empty selection.
var ErrNothingSelected = errors.New("app: no assets selected")

// WriteArchive writes records to w as a zip archive. Entries are named by
// relative path so same-named files from different folders stay distinct.
// It returns the number of entries written.
func WriteArchive(ctx context.Context, w io.Writer, records []catalog.Record) (int, error) {
	if len(records) == 0 {
		return 0, ErrNothingSelected
	}

	zw := zip.NewWriter(w)
	used := make(map[string]int, len(records))
	n := 0
	for i := range records {
		r := &records[i]
		if err := ctx.Err(); err != nil {
			zw.Close()
			return n, err
		}
		name := entryName(r, used)
		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: r.ModTime,
		}
		// Already-compressed media gains nothing from deflate.
		if r.Kind == catalog.Video || r.Kind == catalog.Audio || r.Kind == catalog.Image {
			hdr.Method = zip.Store
		}
		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return n, fmt.Errorf("export %s: %w", name, err)
		}
		src, err := r.Open(ctx)
		if err != nil {
			zw.Close()
			return n, fmt.Errorf("export: %w", err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			zw.Close()
			return n, fmt.Errorf("export %s: %w", name, err)
		}
		n++
		debug.Log(debug.APP, "export: added %s (%d bytes)", name, r.Size)
	}
	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("export: %w", err)
	}
	return n, nil
}

// entryName returns r's archive name, suffixing repeats. Drops can carry
// the same name twice.
func entryName(r *catalog.Record, used map[string]int) string {
	name := r.RelPath
	if name == "" {
		name = r.Name
	}
	count := used[name]
	used[name]++
	if count == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], count, ext)
}
