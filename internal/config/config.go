package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/justyntemme/assetgrid/internal/logging"
)

// Config holds all user-configurable settings loaded from config.yaml
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gallery GalleryConfig `mapstructure:"gallery"`
	Store   StoreConfig   `mapstructure:"store"`
	Hotkeys HotkeysConfig `mapstructure:"hotkeys"`
}

// ServerConfig holds static file server settings
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Root        string `mapstructure:"root"`         // directory served; "" = working directory
	MetricsAddr string `mapstructure:"metrics_addr"` // "" disables the metrics listener
	LogLevel    string `mapstructure:"log_level"`    // debug | info | warn | error
	LogFormat   string `mapstructure:"log_format"`   // console | json
}

// GalleryConfig holds grid and preview settings
type GalleryConfig struct {
	ItemsPerPage     int    `mapstructure:"items_per_page"`
	Depth            string `mapstructure:"depth"`        // "off" | N | "all"
	DefaultSort      string `mapstructure:"default_sort"` // "name" | "size" | "kind" | "modified"
	Descending       bool   `mapstructure:"descending"`
	Columns          int    `mapstructure:"columns"`
	TileWidth        int    `mapstructure:"tile_width"`
	TileHeight       int    `mapstructure:"tile_height"`
	ViewportHeight   int    `mapstructure:"viewport_height"`
	VisibilityMargin int    `mapstructure:"visibility_margin"` // pixels around the viewport
	FullscreenWidth  int    `mapstructure:"fullscreen_width"`
	FullscreenHeight int    `mapstructure:"fullscreen_height"`
	ThumbnailCache   int    `mapstructure:"thumbnail_cache"`  // entries
	ThumbnailPixels  int    `mapstructure:"thumbnail_pixels"` // longer side
	Watch            bool   `mapstructure:"watch"`            // rescan on directory changes
}

// StoreConfig holds settings database options
type StoreConfig struct {
	Path string `mapstructure:"path"` // "" = ~/.config/assetgrid/assetgrid.db
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a configuration manager for path; "" selects
// ConfigPath().
func NewManager(path string) *Manager {
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		v:      newViper(path),
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8000,
			LogLevel:  "info",
			LogFormat: "console",
		},
		Gallery: GalleryConfig{
			ItemsPerPage:     20,
			Depth:            "off",
			DefaultSort:      "name",
			Columns:          5,
			TileWidth:        200,
			TileHeight:       180,
			ViewportHeight:   900,
			VisibilityMargin: 50,
			FullscreenWidth:  1280,
			FullscreenHeight: 720,
			ThumbnailCache:   256,
			ThumbnailPixels:  256,
		},
		Hotkeys: DefaultHotkeys(),
	}
}

// ConfigDir returns ~/.config/assetgrid on every platform.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "assetgrid")
}

// ConfigPath returns the config file path: ~/.config/assetgrid/config.yaml
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil
	log := logging.L().With(zap.String("path", m.path))

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		log.Warn("config: failed to create directory", zap.Error(err))
		return err
	}

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			log.Info("config: creating default config")
			m.config = m.unmarshalLocked()
			if saveErr := m.saveLocked(); saveErr != nil {
				log.Warn("config: failed to save default config", zap.Error(saveErr))
				return saveErr
			}
			return nil
		}
		// Store error for display, use defaults and environment overrides
		log.Warn("config: parse error", zap.Error(err))
		m.parseErr = err
		m.v = newViper(m.path)
		m.config = m.unmarshalLocked()
		return nil
	}

	m.config = m.unmarshalLocked()
	log.Debug("config: loaded")
	return nil
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetPort updates the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Server.Port = port
	return m.saveLocked()
}

// SetItemsPerPage updates the default page size
func (m *Manager) SetItemsPerPage(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Gallery.ItemsPerPage = n
	return m.saveLocked()
}

// SetDepth updates the default subfolder depth
func (m *Manager) SetDepth(depth string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Gallery.Depth = depth
	return m.saveLocked()
}

// SetDefaultSort updates the default sort field and direction
func (m *Manager) SetDefaultSort(field string, descending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Gallery.DefaultSort = field
	m.config.Gallery.Descending = descending
	return m.saveLocked()
}

// Hotkeys returns a matcher for the configured shortcuts
func (m *Manager) Hotkeys() *HotkeyMatcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewHotkeyMatcher(m.config.Hotkeys)
}

// GenerateConfig backs up an existing config at path and writes a fresh
// default. It returns the backup path, or "" when there was nothing to back
// up.
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for k, val := range settings(DefaultConfig()) {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}
	return backupPath, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ASSETGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range settings(DefaultConfig()) {
		v.SetDefault(k, val)
	}
	return v
}

// settings flattens cfg into viper keys.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"server.port":         cfg.Server.Port,
		"server.root":         cfg.Server.Root,
		"server.metrics_addr": cfg.Server.MetricsAddr,
		"server.log_level":    cfg.Server.LogLevel,
		"server.log_format":   cfg.Server.LogFormat,

		"gallery.items_per_page":    cfg.Gallery.ItemsPerPage,
		"gallery.depth":             cfg.Gallery.Depth,
		"gallery.default_sort":      cfg.Gallery.DefaultSort,
		"gallery.descending":        cfg.Gallery.Descending,
		"gallery.columns":           cfg.Gallery.Columns,
		"gallery.tile_width":        cfg.Gallery.TileWidth,
		"gallery.tile_height":       cfg.Gallery.TileHeight,
		"gallery.viewport_height":   cfg.Gallery.ViewportHeight,
		"gallery.visibility_margin": cfg.Gallery.VisibilityMargin,
		"gallery.fullscreen_width":  cfg.Gallery.FullscreenWidth,
		"gallery.fullscreen_height": cfg.Gallery.FullscreenHeight,
		"gallery.thumbnail_cache":   cfg.Gallery.ThumbnailCache,
		"gallery.thumbnail_pixels":  cfg.Gallery.ThumbnailPixels,
		"gallery.watch":             cfg.Gallery.Watch,

		"store.path": cfg.Store.Path,

		"hotkeys.close":           cfg.Hotkeys.Close,
		"hotkeys.prev":            cfg.Hotkeys.Prev,
		"hotkeys.next":            cfg.Hotkeys.Next,
		"hotkeys.play_pause":      cfg.Hotkeys.PlayPause,
		"hotkeys.prev_page":       cfg.Hotkeys.PrevPage,
		"hotkeys.next_page":       cfg.Hotkeys.NextPage,
		"hotkeys.select_all":      cfg.Hotkeys.SelectAll,
		"hotkeys.clear_selection": cfg.Hotkeys.ClearSelection,
		"hotkeys.export":          cfg.Hotkeys.Export,
		"hotkeys.reload":          cfg.Hotkeys.Reload,
	}
}

// --- Internal methods (must be called with lock held) ---

func (m *Manager) unmarshalLocked() *Config {
	cfg := DefaultConfig()
	if err := m.v.Unmarshal(cfg); err != nil {
		logging.L().Warn("config: unmarshal failed, using defaults", zap.Error(err))
		m.parseErr = err
		return DefaultConfig()
	}
	return cfg
}

func (m *Manager) saveLocked() error {
	for k, val := range settings(m.config) {
		m.v.Set(k, val)
	}
	return m.v.WriteConfigAs(m.path)
}
