package workflow

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"siksha/internal/artifacts"
	"siksha/internal/config"
	"siksha/internal/notifications"
	"siksha/internal/progress"
	"siksha/internal/stage"
)

// recordingStore keeps every status written so tests can check ordering.
type recordingStore struct {
	*progress.MemoryStore

	mu      sync.Mutex
	history []progress.Status
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: progress.NewMemoryStore()}
}

func (s *recordingStore) Put(ctx context.Context, key string, status progress.Status) error {
	s.mu.Lock()
	s.history = append(s.history, status)
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, key, status)
}

func (s *recordingStore) snapshot() []progress.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.Status(nil), s.history...)
}

type notifierRecorder struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (n *notifierRecorder) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
	return nil
}

func (n *notifierRecorder) recorded() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

// fakeStage is a scripted stage handler.
type fakeStage struct {
	name       string
	calls      *callLog
	prepareErr error
	executeErr error
	execute    func(ctx context.Context, job *stage.Job) error
}

type callLog struct {
	mu    sync.Mutex
	names []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	c.names = append(c.names, name)
	c.mu.Unlock()
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func (f *fakeStage) Prepare(context.Context, *stage.Job) error {
	return f.prepareErr
}

func (f *fakeStage) Execute(ctx context.Context, job *stage.Job) error {
	f.calls.add(f.name)
	if f.execute != nil {
		return f.execute(ctx, job)
	}
	return f.executeErr
}

func (f *fakeStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.name, "fake")
}

// fakeStages returns a full set whose mux stage writes the final video.
func fakeStages(calls *callLog) (StageSet, map[string]*fakeStage) {
	byName := map[string]*fakeStage{}
	mk := func(name string) *fakeStage {
		f := &fakeStage{name: name, calls: calls}
		byName[name] = f
		return f
	}
	set := StageSet{
		Prompts: mk("prompts"),
		Images:  mk("images"),
		Script:  mk("script"),
		Audio:   mk("audio"),
		Video:   mk("video"),
		Mux:     mk("mux"),
	}
	byName["mux"].execute = writeFinal
	return set, byName
}

func writeFinal(_ context.Context, job *stage.Job) error {
	return os.WriteFile(job.Layout.FinalPath(), []byte("mp4"), 0o644)
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, set StageSet) (*Orchestrator, *recordingStore, *notifierRecorder) {
	t.Helper()
	store := newRecordingStore()
	notifier := &notifierRecorder{}
	o := NewOrchestrator(cfg, store, nil, WithNotifier(notifier), WithStages(set))
	return o, store, notifier
}

func finalStatus(t *testing.T, store progress.Store, key string) progress.Status {
	t.Helper()
	status, ok, err := store.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("status for %s: ok=%v err=%v", key, ok, err)
	}
	return status
}

func assertMonotonic(t *testing.T, history []progress.Status) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		if history[i].Progress < history[i-1].Progress {
			t.Fatalf("progress went backwards at %d: %d -> %d", i, history[i-1].Progress, history[i].Progress)
		}
	}
}

var errBoom = errors.New("boom")

func layoutFor(cfg *config.Config, req Request) artifacts.Layout {
	return artifacts.New(cfg.Paths.OutputDir, req.Folder())
}
