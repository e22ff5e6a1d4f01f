package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"siksha/internal/config"
	"siksha/internal/deps"
	"siksha/internal/logging"
	"siksha/internal/progress"
	"siksha/internal/runs"
	"siksha/internal/services"
	"siksha/internal/workflow"
)

const waitingMessage = "Waiting for a free generation slot..."

// Daemon admits lesson requests, runs them in the background and enforces
// single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        progress.Store
	orchestrator *workflow.Orchestrator
	registry     *runs.Registry

	lockPath string
	lock     *flock.Flock

	// admit serializes the active-run check, the optional reset and the
	// start so a reset never deletes files under a live writer.
	admit   sync.Mutex
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	ActiveRuns   int
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// Submission describes an admitted (or rejected duplicate) request.
type Submission struct {
	Handle  runs.Handle
	Removed []string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store progress.Store, orchestrator *workflow.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orchestrator == nil {
		return nil, errors.New("daemon requires config, progress store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		orchestrator: orchestrator,
		lockPath:     cfg.LockPath(),
		lock:         flock.New(cfg.LockPath()),
	}
	d.registry = runs.New(logger,
		runs.WithLimit(cfg.Workflow.MaxConcurrentRuns),
		runs.WithStartHook(d.markAdmitted),
		runs.WithWaitHook(d.markWaiting),
		runs.WithAbortHook(d.markAborted),
	)
	return d, nil
}

// Start acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another siksha daemon instance is already running")
	}

	d.running.Store(true)
	d.logger.Info("siksha daemon started",
		logging.String("lock", d.lockPath),
		logging.String("output_dir", d.cfg.Paths.OutputDir),
		logging.Int("max_concurrent_runs", d.cfg.Workflow.MaxConcurrentRuns),
	)
	return nil
}

// Stop cancels in-flight runs, waits for them up to ctx's deadline and
// releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}
	if err := d.registry.Shutdown(ctx); err != nil {
		d.logger.Warn("runs still active at shutdown", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("siksha daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d.Stop(ctx)
	return d.store.Close()
}

// Submit starts a lesson run in the background. When regenerate is set the
// lesson's generated files are removed first. A request for a folder that
// already has an active run returns that run's handle with
// runs.ErrRunInProgress and changes nothing.
func (d *Daemon) Submit(ctx context.Context, req workflow.Request, regenerate bool) (Submission, error) {
	req, err := req.Normalize()
	if err != nil {
		return Submission{}, err
	}
	key := req.Folder()

	d.admit.Lock()
	defer d.admit.Unlock()

	if handle, ok := d.registry.Active(key); ok {
		return Submission{Handle: handle}, runs.ErrRunInProgress
	}
	var sub Submission
	if regenerate {
		removed, err := d.orchestrator.Reset(req)
		if err != nil {
			return Submission{}, fmt.Errorf("reset %s: %w", key, err)
		}
		sub.Removed = removed
	}
	handle, err := d.registry.Start(ctx, key, func(runCtx context.Context) error {
		_, err := d.orchestrator.Run(runCtx, req)
		return err
	})
	sub.Handle = handle
	if err != nil {
		return sub, err
	}
	d.logger.Info("lesson accepted",
		logging.String(logging.FieldRunKey, key),
		logging.String(logging.FieldCorrelationID, handle.RequestID),
		logging.Bool("regenerate", regenerate),
		logging.String(logging.FieldEventType, "lesson_accepted"),
	)
	return sub, nil
}

// Cancel stops the active run for folder.
func (d *Daemon) Cancel(folder string) error {
	return d.registry.Cancel(folder)
}

// Progress returns the stored record for folder, or the default record when
// nothing was published yet.
func (d *Daemon) Progress(ctx context.Context, folder string) (progress.Status, error) {
	return progress.Lookup(ctx, d.store, folder)
}

// Runs returns the active handles and every stored record.
func (d *Daemon) Runs(ctx context.Context) ([]runs.Handle, []progress.Entry, error) {
	entries, err := d.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return d.registry.List(), entries, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		ActiveRuns:   len(d.registry.List()),
		Workflow:     d.orchestrator.Status(ctx),
		Dependencies: deps.Check(ctx, deps.Requirements(d.cfg)),
	}
}

// markAdmitted replaces whatever record a previous run left for key so
// pollers never see a stale terminal state for the new run.
func (d *Daemon) markAdmitted(ctx context.Context, key string) {
	d.putQueued(ctx, key, progress.DefaultStatus().Message)
}

// markWaiting publishes the queued record for a run blocked on the
// concurrency limit.
func (d *Daemon) markWaiting(ctx context.Context, key string) {
	d.putQueued(ctx, key, waitingMessage)
}

// markAborted records a run cancelled before it left the queue. The queued
// record's progress is kept.
func (d *Daemon) markAborted(ctx context.Context, key string) {
	ctx = context.WithoutCancel(ctx)
	status, err := progress.Lookup(ctx, d.store, key)
	if err != nil {
		d.logger.Warn("queued status unavailable", logging.String(logging.FieldRunKey, key), logging.Error(err))
		status = progress.DefaultStatus()
	}
	status.State = progress.StateCancelled
	status.Message = progress.CancelledMessage
	status.ErrorKind = progress.CancelledKind
	status.UpdatedAt = time.Now().UTC()
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		status.RequestID = rid
	}
	if err := d.store.Put(ctx, key, status); err != nil {
		d.logger.Warn("cancelled status not persisted", logging.String(logging.FieldRunKey, key), logging.Error(err))
	}
}

func (d *Daemon) putQueued(ctx context.Context, key, message string) {
	status := progress.DefaultStatus()
	status.Message = message
	status.UpdatedAt = time.Now().UTC()
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		status.RequestID = rid
	}
	if err := d.store.Put(ctx, key, status); err != nil {
		d.logger.Warn("queued status not persisted", logging.String(logging.FieldRunKey, key), logging.Error(err))
	}
}
