package workflow

import (
	"log/slog"
	"sync"
	"time"

	"siksha/internal/artifacts"
	"siksha/internal/config"
	"siksha/internal/logging"
	"siksha/internal/notifications"
	"siksha/internal/preflight"
	"siksha/internal/progress"
)

// Orchestrator runs lessons through the configured stages and records their
// progress.
type Orchestrator struct {
	cfg        *config.Config
	store      progress.Store
	logger     *slog.Logger
	notifier   notifications.Service
	spaceCheck func(path string, minMiB uint64) error

	mu       sync.RWMutex
	stages   []pipelineStage
	lastErr  error
	lastKey  string
	finished int
	failed   int
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithNotifier replaces the notifier built from configuration (used in tests).
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithSpaceCheck replaces the free-space preflight.
func WithSpaceCheck(fn func(path string, minMiB uint64) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.spaceCheck = fn
		}
	}
}

// WithStages registers handlers at construction time.
func WithStages(set StageSet) Option {
	return func(o *Orchestrator) {
		o.ConfigureStages(set)
	}
}

// NewOrchestrator constructs an orchestrator writing statuses to store.
func NewOrchestrator(cfg *config.Config, store progress.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		notifier:   notifications.NewService(cfg),
		spaceCheck: preflight.EnsureFreeSpace,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome summarizes a finished run.
type Outcome struct {
	Key       string        `json:"folder"`
	RequestID string        `json:"request_id"`
	State     State         `json:"state"`
	VideoURL  string        `json:"video_url,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Layout returns the artifact layout for a folder under the output root.
func (o *Orchestrator) Layout(folder string) artifacts.Layout {
	return artifacts.New(o.cfg.Paths.OutputDir, folder)
}

// Reset deletes the generated files of req so the next run starts over.
// Callers must make sure no run is writing to the folder.
func (o *Orchestrator) Reset(req Request) ([]string, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	layout := o.Layout(req.Folder())
	removed, err := layout.Reset()
	if err != nil {
		return removed, err
	}
	o.logger.Info("lesson reset",
		logging.String(logging.FieldRunKey, layout.Folder),
		logging.Any("removed", removed),
		logging.String(logging.FieldEventType, "lesson_reset"),
	)
	return removed, nil
}
