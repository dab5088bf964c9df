package lotteryd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for lotteryd.
type Config struct {
	ListenAddress  string            `yaml:"listen"`
	MetricsAddress string            `yaml:"metrics_listen"`
	PollInterval   Duration          `yaml:"poll_interval"`
	PauseOnStart   bool              `yaml:"pause"`
	Rates          map[string]string `yaml:"rates"`
	VRF            VRFConfig         `yaml:"vrf"`
	Admin          AdminConfig       `yaml:"admin"`
	Telemetry      TelemetryConfig   `yaml:"telemetry"`
}

// AdminConfig captures security settings for the admin API.
type AdminConfig struct {
	BearerToken     string `yaml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file"`
}

// VRFConfig points at the external randomness coordinator.
type VRFConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Traces   bool   `yaml:"traces"`
	Metrics  bool   `yaml:"metrics"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Admin.normalise(); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7091"
	}
	if cfg.MetricsAddress == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.PollInterval.Duration == 0 {
		cfg.PollInterval.Duration = 5 * time.Second
	}
	if cfg.VRF.Timeout.Duration == 0 {
		cfg.VRF.Timeout.Duration = 10 * time.Second
	}
	if cfg.Rates == nil {
		cfg.Rates = map[string]string{}
	}
}

func (a *AdminConfig) normalise() error {
	token := strings.TrimSpace(a.BearerToken)
	if token == "" && strings.TrimSpace(a.BearerTokenFile) != "" {
		raw, err := os.ReadFile(a.BearerTokenFile)
		if err != nil {
			return fmt.Errorf("read bearer token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return fmt.Errorf("bearer token must be configured")
	}
	a.BearerToken = token
	return nil
}
