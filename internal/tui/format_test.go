package tui

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spookd/sling/internal/downloader"
)

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "--", FormatSpeed(downloader.SpeedUnknown))
	assert.Equal(t, "0 B/s", FormatSpeed(0))
	assert.Equal(t, "1.0 MB/s", FormatSpeed(1000*1000))
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "--:--", FormatETA(math.NaN()))
	assert.Equal(t, "stalled", FormatETA(math.Inf(1)))
	assert.Equal(t, "00:05", FormatETA(5))
	assert.Equal(t, "02:30", FormatETA(150))
	assert.Equal(t, "1:01:05", FormatETA(3665))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "?", FormatBytes(0))
	assert.Equal(t, "?", FormatBytes(-1))
	assert.Equal(t, "1.0 kB", FormatBytes(1000))
}
