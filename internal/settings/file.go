package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"vacancy_insight/internal/domain"
)

// FileStore keeps the settings as a JSON document on local disk.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "settings", "backend", "file"),
	}
}

func (s *FileStore) Load(_ context.Context) (domain.PollingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DefaultPollingSettings(), nil
	}
	if err != nil {
		return domain.PollingSettings{}, fmt.Errorf("read settings: %w", err)
	}
	return decode(data, s.logger), nil
}

// Save replaces the file atomically so a concurrent Load never sees a
// partial document.
func (s *FileStore) Save(_ context.Context, settings domain.PollingSettings) error {
	data, err := encode(settings)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".polling-settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}

	s.logger.Info("settings saved", "path", s.path, "enabled", settings.Enabled, "limit", settings.Limit)
	return nil
}
