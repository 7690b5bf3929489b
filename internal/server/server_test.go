package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "hero.glb"), []byte("glTF binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("x"), 0o644))

	s, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootServesIndex(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s.Handler(), http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html></html>", rec.Body.String())
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "public, max-age=31536000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestContentTypes(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.glb", "model/gltf-binary"},
		{"a.GLTF", "model/gltf+json"},
		{"a.mjs", "text/javascript"},
		{"a.wasm", "application/wasm"},
		{"a.fbx", "application/octet-stream"},
		{"a.xyz", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.name))
		})
	}

	s := newTestServer(t)
	rec := get(t, s, http.MethodGet, "/models/hero.glb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "model/gltf-binary", rec.Header().Get("Content-Type"))
	assert.Equal(t, "glTF binary", rec.Body.String())
}

func TestETagConditionalRequest(t *testing.T) {
	s := newTestServer(t)
	first := get(t, s, http.MethodGet, "/models/hero.glb", nil)
	tag := first.Header().Get("ETag")
	require.Len(t, tag, 18, "quoted 16 hex digit hash")

	again := get(t, s, http.MethodGet, "/models/hero.glb", nil)
	assert.Equal(t, tag, again.Header().Get("ETag"))

	cached := get(t, s, http.MethodGet, "/models/hero.glb", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	stale := get(t, s, http.MethodGet, "/models/hero.glb", map[string]string{"If-None-Match": `"0000000000000000"`})
	assert.Equal(t, http.StatusOK, stale.Code)
}

func TestETagChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"a":1}`), 0o644))
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	before := get(t, s, http.MethodGet, "/a.json", nil).Header().Get("ETag")
	require.NoError(t, os.WriteFile(file, []byte(`{"a":22}`), 0o644))
	after := get(t, s, http.MethodGet, "/a.json", nil).Header().Get("ETag")
	assert.NotEqual(t, before, after)
}

func TestOptionsPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, http.MethodOptions, "/anything", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/missing.png", "/models", "/models/../../etc/passwd"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = target
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNotFound, rec.Code)
			body, _ := io.ReadAll(rec.Body)
			assert.Equal(t, "File not found", string(body))
		})
	}
}

func TestRangeRequest(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, http.MethodGet, "/models/hero.glb", map[string]string{"Range": "bytes=0-3"})

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "glTF", rec.Body.String())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/", "index.html", true},
		{"", "index.html", true},
		{"/a/b.png", "a/b.png", true},
		{"/a//b.png", "a/b.png", true},
		{"/a/./b.png", "a/b.png", true},
		{"/../secret", "", false},
		{"/a/../../secret", "", false},
	}
	for _, tt := range tests {
		got, ok := resolve(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
