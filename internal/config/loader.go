package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads filePath over the defaults. A missing file is not an
// error when allowMissing is set; the defaults are validated and returned.
func LoadConfig(filePath string, allowMissing bool) (*Config, error) {
	cfg := Default()

	file, err := os.Open(filePath)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.SelectorsFile != "" {
		path := cfg.SelectorsFile
		// relative to the config file
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(filePath), path)
		}
		sel, err := LoadSelectors(path, cfg.Selectors)
		if err != nil {
			return nil, err
		}
		cfg.Selectors = *sel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}
