package lotterygateway

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the gateway.
type Config struct {
	ListenAddress  string                   `yaml:"listen"`
	MetricsAddress string                   `yaml:"metrics_listen"`
	StorePath      string                   `yaml:"store"`
	Rates          map[string]string        `yaml:"rates"`
	Auth           AuthFileConfig           `yaml:"auth"`
	Limits         map[string]RateLimitYAML `yaml:"limits"`
	Telemetry      TelemetryConfig          `yaml:"telemetry"`
}

// AuthFileConfig mirrors AuthConfig with file-friendly fields.
type AuthFileConfig struct {
	HMACSecret     string `yaml:"hmac_secret"`
	HMACSecretFile string `yaml:"hmac_secret_file"`
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience"`
	ClockSkew      string `yaml:"clock_skew"`
}

// RateLimitYAML declares one route's throughput bound.
type RateLimitYAML struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
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
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.MetricsAddress == "" {
		cfg.MetricsAddress = ":9091"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "gateway.db"
	}
	if cfg.Limits == nil {
		cfg.Limits = map[string]RateLimitYAML{}
	}
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (a *AuthFileConfig) normalise() error {
	secret := strings.TrimSpace(a.HMACSecret)
	if secret == "" && strings.TrimSpace(a.HMACSecretFile) != "" {
		raw, err := os.ReadFile(a.HMACSecretFile)
		if err != nil {
			return fmt.Errorf("read hmac secret file: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	if secret == "" {
		return fmt.Errorf("auth hmac secret must be configured")
	}
	a.HMACSecret = secret
	return nil
}

// AuthConfig converts the file form into the middleware configuration.
func (a AuthFileConfig) AuthConfig() (AuthConfig, error) {
	cfg := AuthConfig{
		HMACSecret: a.HMACSecret,
		Issuer:     a.Issuer,
		Audience:   a.Audience,
	}
	if raw := strings.TrimSpace(a.ClockSkew); raw != "" {
		skew, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("parse clock_skew: %w", err)
		}
		cfg.ClockSkew = skew
	}
	return cfg, nil
}

// RateLimits converts the configured table into limiter form.
func (c Config) RateLimits() map[string]RateLimit {
	limits := make(map[string]RateLimit, len(c.Limits))
	for key, limit := range c.Limits {
		limits[key] = RateLimit{
			RequestsPerMinute: limit.RequestsPerMinute,
			Burst:             limit.Burst,
		}
	}
	return limits
}
