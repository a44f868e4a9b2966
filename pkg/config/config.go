// Package config loads the harness's YAML configuration: the tunables
// that parameterize every façade's internal-node/leaf capacities and the
// benchmark/fuzz workload shape.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables shared by cmd/dynseqbench's subcommands.
type Config struct {
	Tree    Tree    `yaml:"tree"`
	Harness Harness `yaml:"harness"`
	Logging Logging `yaml:"logging"`
}

// Tree holds the engine capacity constants every façade is constructed
// with (D_max, L_max, and DWT's default alphabet size).
type Tree struct {
	DMax         int `yaml:"d_max"`
	LMax         int `yaml:"l_max"`
	AlphabetSize int `yaml:"alphabet_size"`
}

// Harness holds the random-workload parameters consumed by the
// CLI benchmarks.
type Harness struct {
	ItemNum  int    `yaml:"item_num"`
	MaxValue int    `yaml:"max_value"`
	QueryNum int    `yaml:"query_num"`
	Seed     int64  `yaml:"seed"`
	Mode     string `yaml:"mode"`
	OutDir   string `yaml:"out_dir"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tree: Tree{
			DMax:         64,
			LMax:         64,
			AlphabetSize: 256,
		},
		Harness: Harness{
			ItemNum:  100000,
			MaxValue: 1 << 20,
			QueryNum: 100000,
			Seed:     1,
			Mode:     "random",
			OutDir:   "./results",
		},
		Logging: Logging{Level: "info"},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigExists checks if a configuration file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
