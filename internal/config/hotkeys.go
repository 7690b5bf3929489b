package config

import (
	"strings"
)

// Modifiers is a set of held modifier keys.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModShift
	ModAlt
	ModMeta // Cmd on macOS, the logo key elsewhere
)

// Contain reports whether m includes every modifier in o.
func (m Modifiers) Contain(o Modifiers) bool { return m&o == o }

// Key names as pointer-and-keyboard events report them.
const (
	KeyEscape     = "Escape"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeySpace      = " "
	KeyEnter      = "Enter"
	KeyTab        = "Tab"
	KeyPageUp     = "PageUp"
	KeyPageDown   = "PageDown"
	KeyHome       = "Home"
	KeyEnd        = "End"
	KeyDelete     = "Delete"
	KeyBackspace  = "Backspace"
)

// Hotkey represents a parsed keyboard shortcut
type Hotkey struct {
	Key       string
	Modifiers Modifiers
}

// ParseHotkey parses a hotkey string like "Ctrl+Shift+N" into a Hotkey struct
func ParseHotkey(s string) Hotkey {
	if s == "" {
		return Hotkey{}
	}

	var mods Modifiers
	var rawKeyPart string

	// "Ctrl++" binds the plus key
	if strings.HasSuffix(s, "++") {
		rawKeyPart = "+"
		s = strings.TrimSuffix(s, "++")
	}

	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		switch strings.ToLower(part) {
		case "":
		case "ctrl", "control":
			mods |= ModCtrl
		case "shift":
			mods |= ModShift
		case "alt", "option":
			mods |= ModAlt
		case "cmd", "command", "super", "meta", "win", "windows":
			mods |= ModMeta
		default:
			rawKeyPart = part
		}
	}

	return Hotkey{Key: parseKeyName(rawKeyPart), Modifiers: mods}
}

// parseKeyName converts a key string to the name keyboard events carry
func parseKeyName(s string) string {
	// Single characters match case-insensitively; store them upper-cased
	if len([]rune(s)) == 1 {
		return strings.ToUpper(s)
	}

	switch strings.ToLower(s) {
	case "left", "leftarrow", "arrowleft":
		return KeyArrowLeft
	case "right", "rightarrow", "arrowright":
		return KeyArrowRight
	case "up", "uparrow", "arrowup":
		return KeyArrowUp
	case "down", "downarrow", "arrowdown":
		return KeyArrowDown
	case "home":
		return KeyHome
	case "end":
		return KeyEnd
	case "pageup", "pgup":
		return KeyPageUp
	case "pagedown", "pgdn", "pgdown":
		return KeyPageDown
	case "enter", "return":
		return KeyEnter
	case "tab":
		return KeyTab
	case "space", "spacebar":
		return KeySpace
	case "backspace", "back":
		return KeyBackspace
	case "delete", "del":
		return KeyDelete
	case "escape", "esc":
		return KeyEscape
	}
	if len(s) >= 2 && (s[0] == 'f' || s[0] == 'F') && isDigits(s[1:]) {
		return "F" + s[1:]
	}
	// Unknown names are kept as-is
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// normalizeEventKey maps an event's key to the form ParseHotkey produces.
func normalizeEventKey(k string) string {
	if k == "Spacebar" {
		return KeySpace
	}
	if len([]rune(k)) == 1 {
		return strings.ToUpper(k)
	}
	return k
}

// Matches checks if a key event matches this hotkey
// Uses exact matching for modifiers to distinguish between similar hotkeys
// (e.g., Ctrl+A vs Ctrl+Shift+A)
func (h Hotkey) Matches(key string, mods Modifiers) bool {
	if h.Key == "" {
		return false
	}
	return normalizeEventKey(key) == h.Key && mods == h.Modifiers
}

// String returns a human-readable representation of the hotkey
func (h Hotkey) String() string {
	if h.Key == "" {
		return ""
	}

	var parts []string
	if h.Modifiers.Contain(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if h.Modifiers.Contain(ModMeta) {
		parts = append(parts, "Cmd")
	}
	if h.Modifiers.Contain(ModShift) {
		parts = append(parts, "Shift")
	}
	if h.Modifiers.Contain(ModAlt) {
		parts = append(parts, "Alt")
	}
	keyStr := h.Key
	if keyStr == KeySpace {
		keyStr = "Space"
	}
	parts = append(parts, keyStr)
	return strings.Join(parts, "+")
}

// HotkeysConfig holds the configured shortcut strings
type HotkeysConfig struct {
	// Fullscreen
	Close     string `mapstructure:"close"`
	Prev      string `mapstructure:"prev"`
	Next      string `mapstructure:"next"`
	PlayPause string `mapstructure:"play_pause"`

	// Grid
	PrevPage       string `mapstructure:"prev_page"`
	NextPage       string `mapstructure:"next_page"`
	SelectAll      string `mapstructure:"select_all"`
	ClearSelection string `mapstructure:"clear_selection"`
	Export         string `mapstructure:"export"`
	Reload         string `mapstructure:"reload"`
}

// HotkeyMatcher provides efficient hotkey matching from config
type HotkeyMatcher struct {
	// Fullscreen
	Close     Hotkey
	Prev      Hotkey
	Next      Hotkey
	PlayPause Hotkey

	// Grid
	PrevPage       Hotkey
	NextPage       Hotkey
	SelectAll      Hotkey
	ClearSelection Hotkey
	Export         Hotkey
	Reload         Hotkey
}

// NewHotkeyMatcher creates a matcher from config
func NewHotkeyMatcher(cfg HotkeysConfig) *HotkeyMatcher {
	return &HotkeyMatcher{
		Close:     ParseHotkey(cfg.Close),
		Prev:      ParseHotkey(cfg.Prev),
		Next:      ParseHotkey(cfg.Next),
		PlayPause: ParseHotkey(cfg.PlayPause),

		PrevPage:       ParseHotkey(cfg.PrevPage),
		NextPage:       ParseHotkey(cfg.NextPage),
		SelectAll:      ParseHotkey(cfg.SelectAll),
		ClearSelection: ParseHotkey(cfg.ClearSelection),
		Export:         ParseHotkey(cfg.Export),
		Reload:         ParseHotkey(cfg.Reload),
	}
}
