package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/assetgrid/internal/catalog"
	"github.com/justyntemme/assetgrid/internal/engine"
	"github.com/justyntemme/assetgrid/internal/host/hosttest"
)

func TestLoopRunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(func() { got = append(got, 3) }))
	assert.Equal(t, []int{0, 1, 2, 3}, got)

	cancel()
	<-l.Done()
	assert.ErrorIs(t, l.Do(func() {}), ErrLoopStopped)
	l.Post(func() { t.Error("ran after stop") })
}

func TestScannerReportsRootFailure(t *testing.T) {
	s := NewScanner()
	go s.Start(context.Background())

	root := hosttest.NewDir("root")
	root.File("a.png", nil, epoch)
	s.RequestChan <- ScanRequest{Root: root, Depth: 0, Gen: 7}
	resp := <-s.ResponseChan
	require.NoError(t, resp.Err)
	assert.Equal(t, int64(7), resp.Gen)
	assert.Len(t, resp.Records, 1)

	denied := hosttest.NewDir("denied")
	denied.Denied = true
	s.RequestChan <- ScanRequest{Root: denied, Gen: 8}
	resp = <-s.ResponseChan
	assert.True(t, catalog.IsAccessDenied(resp.Err))

	close(s.RequestChan)
	_, open := <-s.ResponseChan
	assert.False(t, open, "response channel closes after requests end")
}

func TestLayoutRect(t *testing.T) {
	l := Layout{Columns: 3, TileWidth: 100, TileHeight: 50, Gap: 10}
	assert.Equal(t, engine.Rect{Left: 0, Top: 0, Width: 100, Height: 50}, l.Rect(0))
	assert.Equal(t, engine.Rect{Left: 220, Top: 0, Width: 100, Height: 50}, l.Rect(2))
	assert.Equal(t, engine.Rect{Left: 110, Top: 60, Width: 100, Height: 50}, l.Rect(4))
	assert.Equal(t, engine.Size{Width: 100, Height: 50}, l.TileSize())
}

func TestEntryNameSuffixesRepeats(t *testing.T) {
	used := map[string]int{}
	a := catalog.Record{Name: "clip.mp4", RelPath: "clip.mp4"}
	b := catalog.Record{Name: "clip.mp4"}
	assert.Equal(t, "clip.mp4", entryName(&a, used))
	assert.Equal(t, "clip (1).mp4", entryName(&b, used))
}

func TestDirectoryWatcherNotifies(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "models")
	deep := filepath.Join(sub, "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	w, err := NewDirectoryWatcher(20 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WatchTree(root, 1))
	assert.Equal(t, 2, w.Watching(), "root and one level of subdirectories")

	require.NoError(t, os.WriteFile(filepath.Join(sub, "hero.glb"), []byte("glb"), 0o644))
	select {
	case dir := <-w.Notify():
		assert.Equal(t, sub, dir)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, w.WatchTree(root, catalog.DepthAll))
	assert.Equal(t, 3, w.Watching())
	w.UnwatchAll()
	assert.Zero(t, w.Watching())
}
