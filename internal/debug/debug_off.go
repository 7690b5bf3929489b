//go:build !debug

// Package debug provides a centralized, categorized debug logging system.
// This is the no-op version for release builds.
package debug

// Enabled indicates whether debug logging is active
const Enabled = false

// Category represents a debug logging category
type Category string

const (
	APP        Category = "APP"
	CATALOG    Category = "CATALOG"
	VIEW       Category = "VIEW"
	PREVIEW    Category = "PREVIEW"
	FULLSCREEN Category = "FULLSCREEN"
	SERVER     Category = "SERVER"
	STORE      Category = "STORE"
	HOST       Category = "HOST"
	HOST_ENTRY Category = "HOST_ENTRY"
	FRAME      Category = "FRAME"
)

// Log is a no-op in release builds
func Log(cat Category, format string, args ...interface{}) {}

// Enable is a no-op in release builds
func Enable(cat Category) {}

// Disable is a no-op in release builds
func Disable(cat Category) {}

// IsEnabled always returns false in release builds
func IsEnabled(cat Category) bool { return false }
