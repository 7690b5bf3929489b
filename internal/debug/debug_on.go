//go:build debug

// Package debug provides a centralized, categorized debug logging system.
// Build with -tags debug to enable logging.
package debug

import (
	"os"
	"strings"
	"sync"

	"github.com/justyntemme/assetgrid/internal/logging"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	APP        Category = "APP"        // Gallery orchestration, picker, drop handling
	CATALOG    Category = "CATALOG"    // Ingestion and classification
	VIEW       Category = "VIEW"       // Filter, search, sort, pagination
	PREVIEW    Category = "PREVIEW"    // Tile resource attach/dispose
	FULLSCREEN Category = "FULLSCREEN" // Fullscreen open/close/navigate
	SERVER     Category = "SERVER"     // Static file server
	STORE      Category = "STORE"      // Settings database
	HOST       Category = "HOST"       // Directory and file access

	// Verbose, off by default
	HOST_ENTRY Category = "HOST_ENTRY" // Individual directory entries
	FRAME      Category = "FRAME"      // Per-frame render loop ticks
)

var (
	enabledCategories = map[Category]bool{
		APP:        true,
		CATALOG:    true,
		VIEW:       true,
		PREVIEW:    true,
		FULLSCREEN: true,
		SERVER:     true,
		STORE:      true,
		HOST:       true,
		HOST_ENTRY: false,
		FRAME:      false,
	}
	categoryMu sync.RWMutex
)

func init() {
	// ASSETGRID_DEBUG=APP,PREVIEW or ASSETGRID_DEBUG=all or ASSETGRID_DEBUG=none
	env := os.Getenv("ASSETGRID_DEBUG")
	if env == "" {
		return
	}

	categoryMu.Lock()
	defer categoryMu.Unlock()

	env = strings.ToUpper(env)
	switch env {
	case "ALL":
		for cat := range enabledCategories {
			enabledCategories[cat] = true
		}
	case "NONE":
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
	default:
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
		for _, cat := range strings.Split(env, ",") {
			enabledCategories[Category(strings.TrimSpace(cat))] = true
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}
	logging.S().Debugf("["+string(cat)+"] "+format, args...)
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}
