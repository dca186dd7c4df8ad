package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"bulletin-scraper/internal/scraper"
)

// LoadSelectors reads a selectors YAML file. Keys absent from the file keep
// the values from base.
func LoadSelectors(filePath string, base scraper.Selectors) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close selectors file: %v", closeErr)
		}
	}()

	selectors := base
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&selectors); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := selectors.Validate(); err != nil {
		return nil, fmt.Errorf("selectors file %s: %w", filePath, err)
	}

	return &selectors, nil
}
