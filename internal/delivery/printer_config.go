package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type PrinterConfig struct {
	PrinterName string `json:"printerName"`
}

// PrinterConfigStore persists the operator's printer choice as a JSON file.
type PrinterConfigStore struct {
	mu   sync.Mutex
	path string
}

func NewPrinterConfigStore(path string) *PrinterConfigStore {
	return &PrinterConfigStore{path: path}
}

// Load returns an empty config when the file does not exist yet.
func (s *PrinterConfigStore) Load() (PrinterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg PrinterConfig
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read printer config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse printer config: %w", err)
	}
	return cfg, nil
}

func (s *PrinterConfigStore) Save(cfg PrinterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal printer config: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write printer config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to save printer config: %w", err)
	}
	return nil
}
