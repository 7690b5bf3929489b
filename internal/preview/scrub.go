package preview

import (
	"fmt"
	"math"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// ScrubPosition maps a pointer x coordinate over rect linearly into
// [0, duration]. It returns the target time and the fraction of the bar
// covered. Pointers outside the bar clamp to its ends. ok is false when
// duration is unknown or the bar has no width.
func ScrubPosition(x float64, rect engine.Rect, duration float64) (seconds, fraction float64, ok bool) {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) || rect.Width <= 0 {
		return 0, 0, false
	}
	offset := math.Max(0, math.Min(x-rect.Left, rect.Width))
	fraction = offset / rect.Width
	return fraction * duration, fraction, true
}

// FormatTime renders seconds as mm:ss, or h:mm:ss from one hour up.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func percent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}
