// Package server serves the viewer's static files.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/metrics"
)

const (
	defaultContentType = "application/octet-stream"
	cacheControl       = "public, max-age=31536000"
	shutdownTimeout    = 10 * time.Second
)

var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".woff": "application/font-woff",
	".ttf":  "application/font-ttf",
	".eot":  "application/vnd.ms-fontobject",
	".otf":  "application/font-otf",
	".wasm": "application/wasm",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".fbx":  "application/octet-stream",
}

// ContentType returns the served Content-Type for name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

type etagEntry struct {
	size    int64
	modTime time.Time
	tag     string
}

// Server serves files below one root directory.
type Server struct {
	root *os.Root

	mu    sync.Mutex
	etags map[string]etagEntry
}

// New opens dir as the served root; "" serves the working directory.
func New(dir string) (*Server, error) {
	if dir == "" {
		dir = "."
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("server: open root: %w", err)
	}
	return &Server{root: root, etags: make(map[string]etagEntry)}, nil
}

// Close releases the root directory.
func (s *Server) Close() error {
	return s.root.Close()
}

// Handler returns the file handler wrapped with request logging and metrics.
func (s *Server) Handler() http.Handler {
	return logging.Middleware(metrics.Middleware(s))
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w.Header())
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	name, ok := resolve(r.URL.Path)
	if !ok {
		debug.Log(debug.SERVER, "rejected path %q", r.URL.Path)
		notFound(w)
		return
	}

	f, err := s.root.Open(name)
	if err != nil {
		s.fail(w, r, name, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, name, err)
		return
	}
	if info.IsDir() {
		notFound(w)
		return
	}

	tag, err := s.etag(name, f, info)
	if err != nil {
		s.fail(w, r, name, err)
		return
	}

	h := w.Header()
	setCORS(h)
	h.Set("Content-Type", ContentType(name))
	h.Set("Cache-Control", cacheControl)
	h.Set("ETag", tag)
	h.Set("X-Content-Type-Options", "nosniff")

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// resolve maps a URL path to a slash path relative to the root. Paths that
// climb above the root are rejected.
func resolve(urlPath string) (string, bool) {
	if urlPath == "" || urlPath == "/" {
		return "index.html", true
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return "", false
		}
	}
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return "index.html", true
	}
	if !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// etag returns the quoted content hash of f, reusing the previous hash while
// size and modification time are unchanged.
func (s *Server) etag(name string, f *os.File, info fs.FileInfo) (string, error) {
	s.mu.Lock()
	e, ok := s.etags[name]
	s.mu.Unlock()
	if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.tag, nil
	}

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	tag := fmt.Sprintf("\"%016x\"", d.Sum64())

	s.mu.Lock()
	s.etags[name] = etagEntry{size: info.Size(), modTime: info.ModTime(), tag: tag}
	s.mu.Unlock()
	return tag, nil
}

func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "File not found")
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, name string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		notFound(w)
		return
	}
	logging.WithContext(r.Context()).Warn("server: read failed", zap.String("file", name), zap.Error(err))
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, "Server error")
}

// ListenAndServe runs h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.L().Info("server: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logging.L().Info("server: shutting down", zap.String("addr", addr))
	return srv.Shutdown(shutdownCtx)
}
