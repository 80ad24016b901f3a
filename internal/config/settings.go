// Package config holds user-facing settings persisted as JSON under
// the sling home directory.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spookd/sling/internal/downloader"
	"github.com/spookd/sling/internal/transport"
)

// Settings holds all user-configurable settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Network NetworkSettings `json:"network"`
	Sampler SamplerSettings `json:"sampler"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir"`
	PlainOutput        bool   `json:"plain_output"`
}

// NetworkSettings contains HTTP transport parameters.
type NetworkSettings struct {
	UserAgent           string `json:"user_agent"`
	ProxyURL            string `json:"proxy_url"`
	SkipTLSVerification bool   `json:"skip_tls_verification"`
	ReadBufferSize      int    `json:"read_buffer_size"`
}

// SamplerSettings tunes the throughput estimator.
type SamplerSettings struct {
	SamplePeriod      time.Duration `json:"sample_period"`
	SpeedWindow       time.Duration `json:"speed_window"`
	RecomputeInterval time.Duration `json:"recompute_interval"`
}

// DefaultSettings returns a Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: filepath.Join(homeDir, "Downloads"),
		},
		Network: NetworkSettings{
			ReadBufferSize: transport.DefaultBufferSize,
		},
		Sampler: SamplerSettings{
			SamplePeriod:      downloader.DefaultSamplePeriod,
			SpeedWindow:       downloader.DefaultSpeedWindow,
			RecomputeInterval: downloader.DefaultRecomputeInterval,
		},
	}
}

// GetSlingDir returns the per-user sling directory, creating nothing.
func GetSlingDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".sling")
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetSlingDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if the file
// doesn't exist.
func LoadSettings() (*Settings, error) {
	data, err := os.ReadFile(GetSettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // start with defaults to fill missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	path := GetSettingsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// ToTransportConfig converts network settings into a transport config.
func (s *Settings) ToTransportConfig() transport.Config {
	return transport.Config{
		UserAgent:           s.Network.UserAgent,
		ProxyURL:            s.Network.ProxyURL,
		SkipTLSVerification: s.Network.SkipTLSVerification,
		BufferSize:          s.Network.ReadBufferSize,
	}
}

// ToManagerOptions converts sampler settings into manager options.
func (s *Settings) ToManagerOptions(tr transport.Transport) downloader.Options {
	return downloader.Options{
		Transport:         tr,
		SamplePeriod:      s.Sampler.SamplePeriod,
		SpeedWindow:       s.Sampler.SpeedWindow,
		RecomputeInterval: s.Sampler.RecomputeInterval,
	}
}
