// Package runs tracks the lesson generations currently in flight. There is
// at most one run per lesson folder; each run has its own cancel handle and
// an optional global limit bounds how many generate at once.
package runs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"siksha/internal/logging"
	"siksha/internal/services"
)

var (
	// ErrRunInProgress is returned by Start when the key already has a run.
	ErrRunInProgress = errors.New("generation already in progress")
	// ErrNoActiveRun is returned by Cancel for keys without a run.
	ErrNoActiveRun = errors.New("no active generation")
	// ErrShuttingDown rejects new runs once Shutdown has begun.
	ErrShuttingDown = errors.New("run registry shutting down")
)

// Handle describes one run.
type Handle struct {
	Key       string    `json:"folder"`
	RequestID string    `json:"request_id"`
	StartedAt time.Time `json:"started_at"`
}

// Func is the body of a run. Its context is cancelled by Cancel or Shutdown.
type Func func(ctx context.Context) error

type run struct {
	handle Handle
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every in-flight run.
type Registry struct {
	mu      sync.Mutex
	runs    map[string]*run
	slots   *semaphore.Weighted
	closing bool
	wg      sync.WaitGroup
	logger  *slog.Logger
	onStart func(ctx context.Context, key string)
	onWait  func(ctx context.Context, key string)
	onAbort func(ctx context.Context, key string)
	newID   func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLimit bounds concurrently generating runs. Values below one disable
// the bound.
func WithLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithStartHook is called synchronously by Start before the run's goroutine
// launches, so anything it writes precedes the run's own output.
func WithStartHook(fn func(ctx context.Context, key string)) Option {
	return func(r *Registry) { r.onStart = fn }
}

// WithWaitHook is called when a run must wait for a free slot.
func WithWaitHook(fn func(ctx context.Context, key string)) Option {
	return func(r *Registry) { r.onWait = fn }
}

// WithAbortHook is called when a run is cancelled before its body ever ran,
// which happens while it waits for a slot. The context passed in is already
// cancelled.
func WithAbortHook(fn func(ctx context.Context, key string)) Option {
	return func(r *Registry) { r.onAbort = fn }
}

// New constructs an empty registry.
func New(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		runs:   make(map[string]*run),
		logger: logging.NewComponentLogger(logger, "runs"),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches fn for key in its own goroutine. The run's context derives
// from parent without inheriting its cancellation, so a finished HTTP
// request does not stop the generation, and carries the run key and a fresh
// request ID.
func (r *Registry) Start(parent context.Context, key string, fn Func) (Handle, error) {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return Handle{}, ErrShuttingDown
	}
	if existing, ok := r.runs[key]; ok {
		r.mu.Unlock()
		return existing.handle, ErrRunInProgress
	}
	handle := Handle{Key: key, RequestID: r.newID(), StartedAt: time.Now().UTC()}
	ctx := services.WithRunKey(context.WithoutCancel(parent), key)
	ctx = services.WithRequestID(ctx, handle.RequestID)
	ctx, cancel := context.WithCancel(ctx)
	entry := &run{handle: handle, cancel: cancel, done: make(chan struct{})}
	r.runs[key] = entry
	r.wg.Add(1)
	r.mu.Unlock()

	if r.onStart != nil {
		r.onStart(ctx, key)
	}
	go r.execute(ctx, entry, fn)
	return handle, nil
}

func (r *Registry) execute(ctx context.Context, entry *run, fn Func) {
	logger := logging.WithContext(ctx, r.logger)
	defer func() {
		entry.cancel()
		r.mu.Lock()
		if r.runs[entry.handle.Key] == entry {
			delete(r.runs, entry.handle.Key)
		}
		r.mu.Unlock()
		close(entry.done)
		r.wg.Done()
	}()

	if r.slots != nil {
		if !r.slots.TryAcquire(1) {
			if r.onWait != nil {
				r.onWait(ctx, entry.handle.Key)
			}
			if err := r.slots.Acquire(ctx, 1); err != nil {
				logger.Info("run cancelled while waiting for a slot", logging.String(logging.FieldEventType, "run_cancelled"))
				if r.onAbort != nil {
					r.onAbort(ctx, entry.handle.Key)
				}
				return
			}
		}
		defer r.slots.Release(1)
	}

	started := time.Now()
	err := fn(ctx)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logger.Debug("run exited", logging.Args(attrs...)...)
}

// Cancel stops the run for key. The run exits asynchronously; use Wait to
// block on it.
func (r *Registry) Cancel(key string) error {
	r.mu.Lock()
	entry, ok := r.runs[key]
	r.mu.Unlock()
	if !ok {
		return ErrNoActiveRun
	}
	entry.cancel()
	return nil
}

// Active returns the handle for key when a run is in flight.
func (r *Registry) Active(key string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.runs[key]
	if !ok {
		return Handle{}, false
	}
	return entry.handle, true
}

// List returns every in-flight run ordered by start time.
func (r *Registry) List() []Handle {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.runs))
	for _, entry := range r.runs {
		handles = append(handles, entry.handle)
	}
	r.mu.Unlock()
	sort.Slice(handles, func(i, j int) bool {
		if handles[i].StartedAt.Equal(handles[j].StartedAt) {
			return handles[i].Key < handles[j].Key
		}
		return handles[i].StartedAt.Before(handles[j].StartedAt)
	})
	return handles
}

// Wait blocks until the run for key exits. It returns immediately when no
// run is active.
func (r *Registry) Wait(key string) {
	r.mu.Lock()
	entry, ok := r.runs[key]
	r.mu.Unlock()
	if ok {
		<-entry.done
	}
}

// Shutdown rejects new runs, cancels every active one and waits for them to
// exit or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	for _, entry := range r.runs {
		entry.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
