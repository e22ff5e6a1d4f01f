package progress

import (
	"fmt"
	"strings"

	"siksha/internal/config"
)

// Open returns the backend selected by progress.backend.
func Open(cfg *config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Progress.Backend)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(cfg.Progress.Path)
	default:
		return nil, fmt.Errorf("progress backend: unsupported value %q", cfg.Progress.Backend)
	}
}
