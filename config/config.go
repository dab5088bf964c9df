package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"blocklotto/native/lottery"
)

// AssetConfig declares one lottery asset pool.
type AssetConfig struct {
	Symbol    string `toml:"Symbol"`
	PriceFeed string `toml:"PriceFeed"`
	Decimals  uint8  `toml:"Decimals"`
}

// Config is the lotteryd node configuration loaded from TOML.
type Config struct {
	DataDir        string        `toml:"DataDir"`
	AdminAddress   string        `toml:"AdminAddress"`
	MetricsAddress string        `toml:"MetricsAddress"`
	Environment    string        `toml:"Environment"`
	Authority      string        `toml:"Authority"`
	Beneficiary    string        `toml:"Beneficiary"`
	FeePercentage  uint8         `toml:"FeePercentage"`
	Assets         []AssetConfig `toml:"Assets"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./lotto-data"
	}
	if strings.TrimSpace(cfg.AdminAddress) == "" {
		cfg.AdminAddress = ":8081"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the decoded configuration for operator mistakes before any
// state is opened.
func (c *Config) Validate() error {
	if c.FeePercentage > lottery.MaxFeePercentage {
		return fmt.Errorf("config: FeePercentage %d exceeds maximum %d", c.FeePercentage, lottery.MaxFeePercentage)
	}
	if _, err := ParseAddress(c.Authority); err != nil {
		return fmt.Errorf("config: Authority: %w", err)
	}
	if _, err := ParseAddress(c.Beneficiary); err != nil {
		return fmt.Errorf("config: Beneficiary: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for i, asset := range c.Assets {
		symbol, err := lottery.NormalizeAsset(asset.Symbol)
		if err != nil {
			return fmt.Errorf("config: Assets[%d]: %w", i, err)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: Assets[%d]: duplicate symbol %s", i, symbol)
		}
		seen[symbol] = struct{}{}
		if strings.TrimSpace(asset.PriceFeed) == "" {
			return fmt.Errorf("config: Assets[%d]: missing PriceFeed", i)
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("empty address")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes, got %d", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// SupportedAssets converts the configured pools into engine asset records.
func (c *Config) SupportedAssets() ([]lottery.SupportedAsset, error) {
	assets := make([]lottery.SupportedAsset, 0, len(c.Assets))
	for _, asset := range c.Assets {
		symbol, err := lottery.NormalizeAsset(asset.Symbol)
		if err != nil {
			return nil, err
		}
		assets = append(assets, lottery.SupportedAsset{
			Symbol:    symbol,
			PriceFeed: strings.TrimSpace(asset.PriceFeed),
			Decimals:  asset.Decimals,
		})
	}
	return assets, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./lotto-data",
		AdminAddress:   ":8081",
		MetricsAddress: ":9090",
		Environment:    "dev",
		Authority:      "0x" + strings.Repeat("00", 20),
		Beneficiary:    "0x" + strings.Repeat("00", 20),
		FeePercentage:  10,
		Assets: []AssetConfig{
			{Symbol: "SOL", PriceFeed: "SOL/USD", Decimals: 9},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
