// Package settings persists the mutable polling configuration. A missing or
// unreadable blob always yields the defaults so the poller can start on a
// fresh install.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vacancy_insight/internal/domain"
)

type Store interface {
	Load(ctx context.Context) (domain.PollingSettings, error)
	Save(ctx context.Context, s domain.PollingSettings) error
}

// decode overlays the stored blob on the defaults. A blob that does not parse
// falls back to the defaults entirely; an out-of-range limit is reset alone
// and the remaining fields are kept.
func decode(data []byte, logger *slog.Logger) domain.PollingSettings {
	s := domain.DefaultPollingSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Warn("settings blob is not valid json, using defaults", "error", err)
		return domain.DefaultPollingSettings()
	}
	if err := s.Validate(); err != nil {
		logger.Warn("settings blob has invalid limit, using default limit", "limit", s.Limit, "error", err)
		s.Limit = domain.DefaultPollLimit
	}
	return s
}

func encode(s domain.PollingSettings) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}
