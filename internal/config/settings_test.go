package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spookd/sling/internal/transport"
)

func TestLoadSettingsReturnsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, transport.DefaultBufferSize, s.Network.ReadBufferSize)
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s := DefaultSettings()
	s.Network.UserAgent = "sling-test/1.0"
	s.Network.ProxyURL = "socks5://127.0.0.1:9050"
	s.General.PlainOutput = true
	s.Sampler.SamplePeriod = 100 * time.Millisecond
	require.NoError(t, SaveSettings(s))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadSettingsMergesPartialFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".sling")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	partial := `{"network":{"user_agent":"custom-agent"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(partial), 0o644))

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "custom-agent", s.Network.UserAgent)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, transport.DefaultBufferSize, s.Network.ReadBufferSize)
	assert.NotEmpty(t, s.General.DefaultDownloadDir)
}

func TestLoadSettingsRejectsMalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".sling")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{nope"), 0o644))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestConversionHelpers(t *testing.T) {
	s := DefaultSettings()
	s.Network.UserAgent = "ua"
	s.Network.SkipTLSVerification = true

	cfg := s.ToTransportConfig()
	assert.Equal(t, "ua", cfg.UserAgent)
	assert.True(t, cfg.SkipTLSVerification)

	opts := s.ToManagerOptions(nil)
	assert.Equal(t, s.Sampler.SamplePeriod, opts.SamplePeriod)
	assert.Equal(t, s.Sampler.SpeedWindow, opts.SpeedWindow)
}
