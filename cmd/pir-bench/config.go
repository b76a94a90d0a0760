package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one benchmark run.
type Config struct {
	// Number of key-value pairs packed into the directory
	Entries int `yaml:"entries"`

	// Number of timed end-to-end queries
	Queries int `yaml:"queries"`

	// Lattice secret dimension of the shard
	LWEDimension int `yaml:"lwe_dimension"`

	// Chunk width shard records are split into
	PlaintextBits int `yaml:"plaintext_bits"`

	// Expansion factor of the row map encoding
	Epsilon float64 `yaml:"epsilon"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Entries:       4096,
		Queries:       16,
		LWEDimension:  1024,
		PlaintextBits: 10,
		Epsilon:       0.1,
	}
}

// LoadConfig loads a benchmark configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate checks if the benchmark config is valid. Lattice and chunk
// settings are validated downstream where the parameter sets are built.
func (c *Config) Validate() error {
	if c.Entries <= 0 {
		return fmt.Errorf("entries must be > 0, got: %d", c.Entries)
	}

	if c.Queries <= 0 {
		return fmt.Errorf("queries must be > 0, got: %d", c.Queries)
	}

	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be > 0, got: %v", c.Epsilon)
	}

	return nil
}
