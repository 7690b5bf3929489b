package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/app"
	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/engine/headless"
	"github.com/justyntemme/assetgrid/internal/host"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/preview"
	"github.com/justyntemme/assetgrid/internal/view"
)

func NewScanCmd(mgr **config.Manager) *cobra.Command {
	var (
		depth      string
		filter     string
		search     string
		sortField  string
		desc       bool
		perPage    int
		page       int
		exportPath string
		thumbsDir  string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List one page of the assets in a directory",
		Long: `Scan a directory and print one page of its supported assets.

Without a directory the most recently opened one is scanned again.

Examples:
  assetgrid scan ~/assets                     # first page, subfolders off
  assetgrid scan ~/assets --depth all         # include every subfolder
  assetgrid scan ~/assets --filter glb,fbx    # 3D models only
  assetgrid scan ~/assets --search "hero png" # name or path contains every term
  assetgrid scan --sort size --desc --page 2  # largest first, second page
  assetgrid scan ~/assets --export out.zip    # archive every filtered asset`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := (*mgr).Get()
			out := cmd.OutOrStdout()

			if !cmd.Flags().Changed("depth") {
				depth = cfg.Gallery.Depth
			}
			d, err := catalog.ParseDepth(depth)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("sort") {
				sortField = cfg.Gallery.DefaultSort
			}
			field, err := view.ParseSortField(sortField)
			if err != nil {
				return err
			}
			dir := view.Ascending
			if desc || (!cmd.Flags().Changed("desc") && cfg.Gallery.Descending) {
				dir = view.Descending
			}
			if !cmd.Flags().Changed("per-page") {
				perPage = cfg.Gallery.ItemsPerPage
			}
			if !cmd.Flags().Changed("watch") {
				watch = cfg.Gallery.Watch
			}
			var kinds []catalog.Kind
			if filter != "" {
				if kinds, err = catalog.ParseKinds(filter); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openStore(cfg)
			if err != nil {
				logging.L().Warn("settings store unavailable", zap.Error(err))
				db = nil
			} else {
				defer db.Close()
			}

			path := ""
			if len(args) > 0 {
				path = args[0]
			} else if db != nil {
				if path, err = db.LastDirectory(ctx); err != nil {
					return err
				}
			}
			if path == "" {
				return errors.New("no directory given and none opened before")
			}

			thumbs := preview.NewThumbnailer(cfg.Gallery.ThumbnailCache, cfg.Gallery.ThumbnailPixels)
			defer thumbs.Stop()

			loop := app.NewLoop()
			go loop.Run(ctx)

			doc := headless.NewDocument(thumbs)
			viewport := headless.NewViewport(float64(cfg.Gallery.ViewportHeight))
			viewport.Margin = float64(cfg.Gallery.VisibilityMargin)

			deps := app.Deps{
				Picker:   host.PathPicker{Path: path},
				Doc:      doc,
				Scene:    headless.NewSceneEngine(doc),
				Frames:   headless.NewTicker(loop, headless.DefaultFrameInterval),
				Observer: viewport,
				NewSurface: func(size engine.Size, rect engine.Rect) engine.Surface {
					s := doc.NewSurface(size)
					s.SetRect(rect)
					return s
				},
				Fullscreen: doc.NewSurface(engine.Size{Width: cfg.Gallery.FullscreenWidth, Height: cfg.Gallery.FullscreenHeight}),
				Notifier:   &app.WriterNotifier{W: cmd.ErrOrStderr()},
				Keys:       (*mgr).Hotkeys(),
				Store:      db,
			}
			opts := app.Options{
				Depth:     d,
				PageSize:  perPage,
				Sort:      field,
				Direction: dir,
				Layout: app.Layout{
					Columns:    cfg.Gallery.Columns,
					TileWidth:  cfg.Gallery.TileWidth,
					TileHeight: cfg.Gallery.TileHeight,
					Gap:        app.DefaultLayout.Gap,
				},
				Watch: watch,
			}
			rendered := make(chan view.PageDescription, 1)
			opts.OnRender = func(desc view.PageDescription) {
				select {
				case <-rendered:
				default:
				}
				rendered <- desc
			}

			g := app.NewGallery(ctx, loop, deps, opts)
			g.Start()
			defer g.Close()

			if err := g.Pick(ctx); err != nil {
				return err
			}
			err = g.Update(func(s *view.State) error {
				if kinds != nil {
					s.SetKinds(kinds)
				}
				s.SetSearch(search)
				if err := s.SetPageSize(perPage); err != nil {
					return err
				}
				s.SetPage(page - 1)
				return nil
			})
			if err != nil {
				return err
			}

			printPage(out, g.Describe(), g.Report())

			if thumbsDir != "" {
				if err := writeThumbnails(ctx, cmd, thumbs, g.Result().Page(), thumbsDir); err != nil {
					return err
				}
			}
			if exportPath != "" {
				if err := g.Update(func(s *view.State) error { s.SelectAll(); return nil }); err != nil {
					return err
				}
				if err := exportTo(ctx, cmd, g, exportPath); err != nil {
					return err
				}
			}

			if !watch {
				return nil
			}
			select {
			case <-rendered:
			default:
			}
			fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop.")
			for {
				select {
				case <-ctx.Done():
					return nil
				case desc := <-rendered:
					fmt.Fprintln(out)
					printPage(out, desc, g.Report())
				}
			}
		},
	}

	cmd.Flags().StringVar(&depth, "depth", "off", `subfolder depth: "off", a number, or "all"`)
	cmd.Flags().StringVar(&filter, "filter", "", "comma separated kinds to show (glb,fbx,video,audio,image)")
	cmd.Flags().StringVar(&search, "search", "", "space separated terms matched against name and path")
	cmd.Flags().StringVar(&sortField, "sort", "name", "sort field: name, size, kind or modified")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&perPage, "per-page", view.DefaultPageSize, "items per page")
	cmd.Flags().IntVar(&page, "page", 1, "page to print, starting at 1")
	cmd.Flags().StringVar(&exportPath, "export", "", "write every filtered asset to this zip file")
	cmd.Flags().StringVar(&thumbsDir, "thumbs", "", "write PNG thumbnails of the page's images to this directory")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and reprint when the directory changes")
	return cmd
}

func printPage(w io.Writer, desc view.PageDescription, report *catalog.ScanReport) {
	if desc.Empty {
		fmt.Fprintln(w, "No supported assets.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tKIND\tSIZE\tMODIFIED\tPATH")
		for _, t := range desc.Tiles {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.Index+1, t.Name, t.Kind, t.Size, t.Modified, t.Path)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "%s, %d assets, %s\n", desc.PageLabel, desc.Total, desc.SelectionLabel)
	if report != nil && len(report.Errors) > 0 {
		fmt.Fprintf(w, "%d entries could not be read\n", len(report.Errors))
	}
}

func writeThumbnails(ctx context.Context, cmd *cobra.Command, thumbs *preview.Thumbnailer, page []catalog.Record, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	written := 0
	for i, r := range page {
		if r.Kind != catalog.Image || r.Handle == nil {
			continue
		}
		th, err := thumbs.Load(ctx, headless.ThumbnailKey(r.Handle, r.Name), r.Handle)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "assetgrid: thumbnail %s: %v\n", r.Name, err)
			continue
		}
		name := fmt.Sprintf("%03d-%s.png", i+1, strings.TrimSuffix(r.Name, filepath.Ext(r.Name)))
		if err := imaging.Save(th.Image, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("save thumbnail: %w", err)
		}
		written++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d thumbnails to %s\n", written, dir)
	return nil
}

func exportTo(ctx context.Context, cmd *cobra.Command, g *app.Gallery, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := g.ExportSelected(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d assets to %s\n", n, path)
	return nil
}
