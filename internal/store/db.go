// Package store persists the little state that outlives a session: the
// theme preference and the recently opened directories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/justyntemme/assetgrid/internal/debug"
	"github.com/justyntemme/assetgrid/internal/logging"
)

// Setting keys.
const (
	KeyTheme = "theme"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// MaxRecent bounds the recent directory list.
const MaxRecent = 10

// ErrInvalidTheme is returned by SetTheme for values other than light and
// dark.
var ErrInvalidTheme = errors.New("store: theme must be light or dark")

type EventType int

const (
	FetchRecent EventType = iota
	AddRecent
	RemoveRecent
	FetchSettings
	SaveSetting
)

type Request struct {
	Op    EventType
	Path  string
	Key   string
	Value string
}

type Response struct {
	Op       EventType
	Recent   []string          // Most recent first
	Settings map[string]string // Key-value settings
	Err      error
}

type DB struct {
	conn         *sql.DB
	RequestChan  chan Request
	ResponseChan chan Response

	started atomic.Bool
	done    chan struct{}
}

func NewDB() *DB {
	return &DB{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
		done:         make(chan struct{}),
	}
}

// DefaultPath returns ~/.config/assetgrid/assetgrid.db.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "assetgrid", "assetgrid.db")
}

// Open initializes the database connection and schema
func (d *DB) Open(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return fmt.Errorf("enable wal: %w", err)
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return err
	}

	schema := []string{`
	CREATE TABLE IF NOT EXISTS recent_dirs (
		path TEXT PRIMARY KEY,
		opened_at INTEGER NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	}
	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}

	d.conn = db
	debug.Log(debug.STORE, "opened %s", dbPath)
	return nil
}

// Start serves RequestChan until it is closed.
func (d *DB) Start() {
	d.started.Store(true)
	defer close(d.done)
	for req := range d.RequestChan {
		switch req.Op {
		case FetchRecent:
			d.handleFetchRecent()
		case AddRecent:
			d.handleAddRecent(req.Path)
		case RemoveRecent:
			d.handleRemoveRecent(req.Path)
		case FetchSettings:
			d.handleFetchSettings()
		case SaveSetting:
			d.handleSaveSetting(req.Key, req.Value)
		}
	}
}

func (d *DB) handleFetchRecent() {
	recent, err := d.Recent(context.Background())
	d.respond(Response{Op: FetchRecent, Recent: recent, Err: err})
}

func (d *DB) handleAddRecent(path string) {
	if err := d.TouchRecent(context.Background(), path); err != nil {
		logging.L().Warn("store: add recent", zap.String("path", path), zap.Error(err))
	}
	// Always trigger a fetch after modification to sync listeners
	d.handleFetchRecent()
}

func (d *DB) handleRemoveRecent(path string) {
	if _, err := d.conn.Exec("DELETE FROM recent_dirs WHERE path = ?", path); err != nil {
		logging.L().Warn("store: remove recent", zap.String("path", path), zap.Error(err))
	}
	d.handleFetchRecent()
}

func (d *DB) handleFetchSettings() {
	settings, err := d.Settings(context.Background())
	d.respond(Response{Op: FetchSettings, Settings: settings, Err: err})
}

// respond drops the response when nobody drains ResponseChan.
func (d *DB) respond(resp Response) {
	select {
	case d.ResponseChan <- resp:
	default:
		debug.Log(debug.STORE, "response %d dropped", resp.Op)
	}
}

func (d *DB) handleSaveSetting(key, value string) {
	if err := d.SaveSetting(context.Background(), key, value); err != nil {
		logging.L().Warn("store: save setting", zap.String("key", key), zap.Error(err))
	}
	// Trigger a fetch to sync settings
	d.handleFetchSettings()
}

// Recent returns the recently opened directories, most recent first.
func (d *DB) Recent(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT path FROM recent_dirs ORDER BY opened_at DESC, path ASC LIMIT ?", MaxRecent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recent []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		recent = append(recent, path)
	}
	return recent, rows.Err()
}

// TouchRecent records path as just opened and trims the list to MaxRecent.
func (d *DB) TouchRecent(ctx context.Context, path string) error {
	now := time.Now().UnixNano()
	if _, err := d.conn.ExecContext(ctx,
		"INSERT INTO recent_dirs (path, opened_at) VALUES (?, ?) ON CONFLICT(path) DO UPDATE SET opened_at = excluded.opened_at",
		path, now); err != nil {
		return err
	}
	_, err := d.conn.ExecContext(ctx,
		"DELETE FROM recent_dirs WHERE path NOT IN (SELECT path FROM recent_dirs ORDER BY opened_at DESC, path ASC LIMIT ?)",
		MaxRecent)
	return err
}

// LastDirectory returns the most recently opened directory, or "".
func (d *DB) LastDirectory(ctx context.Context) (string, error) {
	recent, err := d.Recent(ctx)
	if err != nil || len(recent) == 0 {
		return "", err
	}
	return recent[0], nil
}

// Settings returns every stored setting.
func (d *DB) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SaveSetting upserts one setting.
func (d *DB) SaveSetting(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

// Theme returns the stored theme, light when none is stored.
func (d *DB) Theme(ctx context.Context) (string, error) {
	var theme string
	err := d.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", KeyTheme).Scan(&theme)
	if errors.Is(err, sql.ErrNoRows) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	return theme, nil
}

// SetTheme stores the theme preference.
func (d *DB) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return d.SaveSetting(ctx, KeyTheme, theme)
}

// ToggleTheme flips the stored theme and returns the new value.
func (d *DB) ToggleTheme(ctx context.Context) (string, error) {
	theme, err := d.Theme(ctx)
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if theme == ThemeDark {
		next = ThemeLight
	}
	return next, d.SetTheme(ctx, next)
}

// Close releases the database. When Start is running, Close waits for it to
// drain the closed RequestChan first.
func (d *DB) Close() {
	if d.started.Load() {
		<-d.done
	}
	if d.conn != nil {
		d.conn.Close()
	}
}
