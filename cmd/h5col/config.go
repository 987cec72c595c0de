package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the settings a configuration file may provide. Command-line
// flags override file values.
type Config struct {
	LogLevel       string       `yaml:"log_level" toml:"log_level"`
	VerifyChecksum *bool        `yaml:"verify_checksum" toml:"verify_checksum"`
	Export         ExportConfig `yaml:"export" toml:"export"`
}

// ExportConfig holds defaults of the export command.
type ExportConfig struct {
	Format             string `yaml:"format" toml:"format"`
	Workers            int    `yaml:"workers" toml:"workers"`
	BatchSize          int    `yaml:"batch_size" toml:"batch_size"`
	ParquetCompression string `yaml:"parquet_compression" toml:"parquet_compression"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "warn",
		Export: ExportConfig{
			Format:             "arrow",
			BatchSize:          4096,
			ParquetCompression: "zstd",
		},
	}
}

// loadConfig reads path over the defaults. The format follows the file
// extension: .yaml/.yml or .toml. An empty path returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q, want .yaml, .yml or .toml", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Verify reports whether checksums are verified. It defaults to true.
func (c *Config) Verify() bool {
	return c.VerifyChecksum == nil || *c.VerifyChecksum
}

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set = true
	b.value = v

	return nil
}

func (b *optionalBool) String() string {
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) IsBoolFlag() bool {
	return true
}
