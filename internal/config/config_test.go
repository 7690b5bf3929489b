package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	cfg := m.Get()
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Gallery.ItemsPerPage != 20 {
		t.Errorf("ItemsPerPage = %d, want 20", cfg.Gallery.ItemsPerPage)
	}
	if cfg.Gallery.VisibilityMargin != 50 {
		t.Errorf("VisibilityMargin = %d, want 50", cfg.Gallery.VisibilityMargin)
	}
	if cfg.Hotkeys.Close != "Escape" {
		t.Errorf("Hotkeys.Close = %q, want Escape", cfg.Hotkeys.Close)
	}
	if m.ParseError() != nil {
		t.Errorf("ParseError = %v", m.ParseError())
	}
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if err := m.SetPort(9100); err != nil {
		t.Fatal(err)
	}
	if err := m.SetItemsPerPage(50); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDepth("all"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefaultSort("size", true); err != nil {
		t.Fatal(err)
	}

	again := NewManager(path)
	if err := again.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := again.Get()
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Gallery.ItemsPerPage != 50 {
		t.Errorf("ItemsPerPage = %d, want 50", cfg.Gallery.ItemsPerPage)
	}
	if cfg.Gallery.Depth != "all" {
		t.Errorf("Depth = %q, want all", cfg.Gallery.Depth)
	}
	if cfg.Gallery.DefaultSort != "size" || !cfg.Gallery.Descending {
		t.Errorf("sort = %q desc=%v, want size desc", cfg.Gallery.DefaultSort, cfg.Gallery.Descending)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ASSETGRID_SERVER_PORT", "7777")
	t.Setenv("ASSETGRID_GALLERY_DEPTH", "3")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want 7777 from environment", cfg.Server.Port)
	}
	if cfg.Gallery.Depth != "3" {
		t.Errorf("Depth = %q, want 3", cfg.Gallery.Depth)
	}
}

func TestParseErrorFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load should not fail on a parse error: %v", err)
	}
	if m.ParseError() == nil {
		t.Error("ParseError = nil, want the YAML error")
	}
	if got := m.Get().Server.Port; got != 8000 {
		t.Errorf("Port = %d, want default 8000", got)
	}
}

func TestGenerateConfigBacksUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	backup, err := GenerateConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if backup == "" {
		t.Fatal("expected a backup path")
	}
	data, err := os.ReadFile(backup)
	if err != nil || string(data) != "server:\n  port: 1234\n" {
		t.Errorf("backup content = %q, %v", data, err)
	}

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if got := m.Get().Server.Port; got != 8000 {
		t.Errorf("Port = %d after regenerate, want 8000", got)
	}

	fresh := filepath.Join(t.TempDir(), "config.yaml")
	backup, err = GenerateConfig(fresh)
	if err != nil || backup != "" {
		t.Errorf("GenerateConfig(fresh) = %q, %v; want no backup", backup, err)
	}
}
