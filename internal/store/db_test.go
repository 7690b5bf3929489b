package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d := NewDB()
	if err := d.Open(filepath.Join(t.TempDir(), "sub", "test.db")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestThemeDefaultsToLight(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()
	theme, err := d.Theme(ctx)
	if err != nil || theme != ThemeLight {
		t.Fatalf("Theme() = %q, %v; want light", theme, err)
	}

	if err := d.SetTheme(ctx, ThemeDark); err != nil {
		t.Fatal(err)
	}
	if theme, _ := d.Theme(ctx); theme != ThemeDark {
		t.Errorf("Theme() = %q, want dark", theme)
	}

	next, err := d.ToggleTheme(ctx)
	if err != nil || next != ThemeLight {
		t.Errorf("ToggleTheme() = %q, %v; want light", next, err)
	}

	if err := d.SetTheme(ctx, "sepia"); !errors.Is(err, ErrInvalidTheme) {
		t.Errorf("SetTheme(sepia) = %v, want ErrInvalidTheme", err)
	}
}

func TestThemeSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	d := NewDB()
	if err := d.Open(path); err != nil {
		t.Fatal(err)
	}
	if err := d.SetTheme(context.Background(), ThemeDark); err != nil {
		t.Fatal(err)
	}
	d.Close()

	again := NewDB()
	if err := again.Open(path); err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if theme, _ := again.Theme(context.Background()); theme != ThemeDark {
		t.Errorf("Theme() after reopen = %q, want dark", theme)
	}
}

func TestRecentDirectories(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()

	if last, err := d.LastDirectory(ctx); err != nil || last != "" {
		t.Fatalf("LastDirectory() on empty store = %q, %v", last, err)
	}

	for _, p := range []string{"/a", "/b", "/c"} {
		if err := d.TouchRecent(ctx, p); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.TouchRecent(ctx, "/a"); err != nil {
		t.Fatal(err)
	}

	recent, err := d.Recent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/a", "/c", "/b"}
	if fmt.Sprint(recent) != fmt.Sprint(want) {
		t.Errorf("Recent() = %v, want %v", recent, want)
	}
	if last, _ := d.LastDirectory(ctx); last != "/a" {
		t.Errorf("LastDirectory() = %q, want /a", last)
	}
}

func TestRecentIsBounded(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()
	for i := 0; i < MaxRecent+5; i++ {
		if err := d.TouchRecent(ctx, fmt.Sprintf("/dir%02d", i)); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := d.Recent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != MaxRecent {
		t.Errorf("len(Recent()) = %d, want %d", len(recent), MaxRecent)
	}
}

func TestRequestLoop(t *testing.T) {
	d := openTest(t)
	go d.Start()
	defer close(d.RequestChan)

	d.RequestChan <- Request{Op: SaveSetting, Key: KeyTheme, Value: ThemeDark}
	resp := <-d.ResponseChan
	if resp.Op != FetchSettings || resp.Settings[KeyTheme] != ThemeDark {
		t.Errorf("SaveSetting response = %+v", resp)
	}

	d.RequestChan <- Request{Op: AddRecent, Path: "/assets"}
	resp = <-d.ResponseChan
	if resp.Op != FetchRecent || len(resp.Recent) != 1 || resp.Recent[0] != "/assets" {
		t.Errorf("AddRecent response = %+v", resp)
	}

	d.RequestChan <- Request{Op: RemoveRecent, Path: "/assets"}
	resp = <-d.ResponseChan
	if len(resp.Recent) != 0 {
		t.Errorf("RemoveRecent response = %+v", resp)
	}
}
