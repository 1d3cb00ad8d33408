// Package video implements the video generation provider adapters.
package video

import "time"

// RunwayConfig configures the Runway Gen-3 adapter.
type RunwayConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIVersion string        `json:"api_version" yaml:"api_version"`
	Model      string        `json:"model" yaml:"model"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultRunwayConfig returns the Runway defaults.
func DefaultRunwayConfig() RunwayConfig {
	return RunwayConfig{
		BaseURL:    "https://api.dev.runwayml.com",
		APIVersion: "2024-11-06",
		Model:      "gen3a_turbo",
		Timeout:    60 * time.Second,
	}
}

// VeoConfig configures the Google Veo adapter.
type VeoConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultVeoConfig returns the Veo defaults.
func DefaultVeoConfig() VeoConfig {
	return VeoConfig{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "veo-2.0-generate-001",
		Timeout: 60 * time.Second,
	}
}

// KlingConfig configures the Kling adapter. Kling authenticates with a
// short-lived JWT signed from an access key / secret key pair.
type KlingConfig struct {
	AccessKey string        `json:"access_key" yaml:"access_key"`
	SecretKey string        `json:"secret_key" yaml:"secret_key"`
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	Model     string        `json:"model" yaml:"model"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultKlingConfig returns the Kling defaults.
func DefaultKlingConfig() KlingConfig {
	return KlingConfig{
		BaseURL: "https://api.klingai.com",
		Model:   "kling-v1-6",
		Timeout: 60 * time.Second,
	}
}
