package tui

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/spookd/sling/internal/downloader"
)

// FormatSpeed renders an average speed for display; the unknown
// sentinel renders as a placeholder.
func FormatSpeed(speed int64) string {
	if speed == downloader.SpeedUnknown {
		return "--"
	}
	return humanize.Bytes(uint64(speed)) + "/s"
}

// FormatETA renders a time-remaining figure in seconds. NaN (total or
// speed unknown) renders as a placeholder, +Inf as stalled.
func FormatETA(seconds float64) string {
	switch {
	case math.IsNaN(seconds):
		return "--:--"
	case math.IsInf(seconds, 1):
		return "stalled"
	}

	total := int64(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatBytes renders a byte count, with "?" for an unknown total.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "?"
	}
	return humanize.Bytes(uint64(n))
}
