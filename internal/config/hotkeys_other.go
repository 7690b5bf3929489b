//go:build !darwin

package config

// DefaultHotkeys returns the default keyboard shortcuts for Windows/Linux
// Uses Ctrl for selection and export shortcuts (standard convention)
func DefaultHotkeys() HotkeysConfig {
	return HotkeysConfig{
		// Fullscreen
		Close:     "Escape",
		Prev:      "ArrowLeft",
		Next:      "ArrowRight",
		PlayPause: "Space",

		// Grid
		PrevPage:       "PageUp",
		NextPage:       "PageDown",
		SelectAll:      "Ctrl+A",
		ClearSelection: "Ctrl+Shift+A",
		Export:         "Ctrl+S",
		Reload:         "F5",
	}
}
