package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"igreels/pkg/models"
)

// WriteResults replaces path with the result JSON. Readers never see a
// half-written file.
func WriteResults(path string, result *models.ScrapeResult, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return writeAtomic(path, append(data, '\n'), 0644)
}

// ReadResults loads a result file written by WriteResults.
func ReadResults(path string) (*models.ScrapeResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result := models.NewScrapeResult()
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return result, nil
}
