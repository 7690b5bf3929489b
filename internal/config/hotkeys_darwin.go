//go:build darwin

package config

// DefaultHotkeys returns the default keyboard shortcuts for macOS
// Uses Cmd for selection and export shortcuts (standard convention)
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
		SelectAll:      "Cmd+A",
		ClearSelection: "Cmd+Shift+A",
		Export:         "Cmd+S",
		Reload:         "Cmd+R",
	}
}
