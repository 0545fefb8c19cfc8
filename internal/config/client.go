package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ClientConfig configures the settings engine, the enrollment machine and the
// upload gateway of one logged-in session.
type ClientConfig struct {
	APIBaseURL string   `toml:"api_base_url"`
	Token      string   `toml:"token"`
	Timeout    Duration `toml:"timeout"`
	// SettingsPath selects between /dashboard and /customization/settings.
	SettingsPath       string   `toml:"settings_path"`
	ValidationDebounce Duration `toml:"validation_debounce"`
	KeepOpenOnError    bool     `toml:"keep_open_on_error"`
}

// Duration decodes TOML strings such as "300ms" or "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		APIBaseURL:         "http://localhost:3008",
		Timeout:            Duration{15 * time.Second},
		SettingsPath:       "/customization/settings",
		ValidationDebounce: Duration{300 * time.Millisecond},
	}
}

// LoadClientConfig reads a TOML profile if path is non-empty and exists, then
// applies BIOLINK_API_URL and BIOLINK_TOKEN from the environment.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := toml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode client config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to open client config: %w", err)
		}
	}

	if url := os.Getenv("BIOLINK_API_URL"); url != "" {
		cfg.APIBaseURL = url
	}
	if token := os.Getenv("BIOLINK_TOKEN"); token != "" {
		cfg.Token = token
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api_base_url is not set")
	}
	if cfg.ValidationDebounce.Duration <= 0 {
		cfg.ValidationDebounce.Duration = 300 * time.Millisecond
	}
	switch cfg.SettingsPath {
	case "/dashboard", "/customization/settings":
	default:
		return nil, fmt.Errorf("unsupported settings_path: %s", cfg.SettingsPath)
	}
	return cfg, nil
}
