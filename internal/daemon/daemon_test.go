package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"siksha/internal/api"
	"siksha/internal/artifacts"
	"siksha/internal/config"
	"siksha/internal/daemon"
	"siksha/internal/notifications"
	"siksha/internal/progress"
	"siksha/internal/stage"
	"siksha/internal/testsupport"
	"siksha/internal/workflow"
)

type quietNotifier struct{}

func (quietNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

// gateStage blocks Execute until release is closed or the run is cancelled.
type gateStage struct {
	release chan struct{}
	entered chan string
}

func (g *gateStage) Prepare(context.Context, *stage.Job) error { return nil }

func (g *gateStage) Execute(ctx context.Context, job *stage.Job) error {
	if g.entered != nil {
		select {
		case g.entered <- job.Key:
		default:
		}
	}
	if g.release == nil {
		return nil
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gateStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("gate", "fake") }

type passStage struct{}

func (passStage) Prepare(context.Context, *stage.Job) error { return nil }
func (passStage) Execute(context.Context, *stage.Job) error { return nil }
func (passStage) HealthCheck(context.Context) stage.Health  { return stage.Healthy("pass", "fake") }

type finalStage struct{}

func (finalStage) Prepare(context.Context, *stage.Job) error { return nil }
func (finalStage) Execute(_ context.Context, job *stage.Job) error {
	return os.WriteFile(job.Layout.FinalPath(), []byte("mp4 bytes"), 0o644)
}
func (finalStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("mux", "fake") }

func newDaemon(t *testing.T, cfg *config.Config, gate *gateStage) (*daemon.Daemon, progress.Store) {
	t.Helper()
	store := progress.NewMemoryStore()
	images := stage.Handler(passStage{})
	if gate != nil {
		images = gate
	}
	orch := workflow.NewOrchestrator(cfg, store, nil,
		workflow.WithNotifier(quietNotifier{}),
		workflow.WithStages(workflow.StageSet{
			Prompts: passStage{},
			Images:  images,
			Script:  passStage{},
			Audio:   passStage{},
			Video:   passStage{},
			Mux:     finalStage{},
		}),
	)
	d, err := daemon.New(cfg, store, orch, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, store
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func waitForState(t *testing.T, h http.Handler, req api.LessonRequest, state string) api.ProgressStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status := decode[api.ProgressStatus](t, post(t, h, api.PathProgress, req))
		if status.Status == state {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last %+v", state, status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForMessage(t *testing.T, h http.Handler, req api.LessonRequest, message string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status := decode[api.ProgressStatus](t, post(t, h, api.PathProgress, req))
		if status.Message == message {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q, last %+v", message, status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonStartStopEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg, nil)
	second, _ := newDaemon(t, cfg, nil)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !first.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := first.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention, got %v", err)
	}

	first.Stop(ctx)
	if first.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestGenerateRejectsDuplicateAndCancels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gate := &gateStage{release: make(chan struct{}), entered: make(chan string, 1)}
	d, _ := newDaemon(t, cfg, gate)
	h := d.Handler()

	req := api.LessonRequest{Topic: "Volcanoes", Audience: "middle school", Interests: []string{"lava"}}
	w := post(t, h, api.PathGenerate, req)
	if w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	started := decode[api.GenerateResponse](t, w)
	if started.Status != "processing" || started.RequestID == "" || !strings.HasPrefix(started.Folder, "Volcanoes__") {
		t.Fatalf("unexpected response: %+v", started)
	}
	<-gate.entered

	for _, path := range []string{api.PathGenerate, api.PathRegenerate} {
		w = post(t, h, path, req)
		if w.Code != http.StatusConflict {
			t.Fatalf("%s duplicate: %d", path, w.Code)
		}
		conflict := decode[api.ErrorResponse](t, w)
		if conflict.Status != "processing" || conflict.RequestID != started.RequestID || conflict.Folder != started.Folder {
			t.Fatalf("%s conflict body: %+v", path, conflict)
		}
	}

	w = post(t, h, api.PathCancel, api.LessonRequest{Folder: started.Folder})
	if w.Code != http.StatusOK || !decode[api.CancelResponse](t, w).Cancelled {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	status := waitForState(t, h, req, "cancelled")
	if status.Progress != 10 || status.RequestID != started.RequestID {
		t.Fatalf("cancelled status: %+v", status)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = post(t, h, api.PathCancel, req)
		if w.Code == http.StatusNotFound {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second cancel: %d", w.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGenerateCompletesAndServesVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, nil)
	h := d.Handler()

	req := api.LessonRequest{Topic: "Rainbows"}
	if w := post(t, h, api.PathGenerate, req); w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	done := waitForState(t, h, req, "completed")
	if done.Progress != 100 || done.Step != 6 || done.VideoURL == "" {
		t.Fatalf("completed status: %+v", done)
	}

	videoStatus := decode[api.VideoStatus](t, post(t, h, api.PathStatus, req))
	if videoStatus.Status != "completed" || !videoStatus.IsRecent || videoStatus.VideoURL != done.VideoURL {
		t.Fatalf("video status: %+v", videoStatus)
	}

	w := get(t, h, videoStatus.VideoURL)
	if w.Code != http.StatusOK {
		t.Fatalf("static fetch: %d", w.Code)
	}
	if body, _ := io.ReadAll(w.Body); string(body) != "mp4 bytes" {
		t.Fatalf("static body = %q", body)
	}
	if w := get(t, h, cfg.Paths.URLPrefix+"/"+videoStatus.Folder+"/"); w.Code != http.StatusNotFound {
		t.Fatalf("directory listing served: %d", w.Code)
	}

	runsResp := decode[api.RunsResponse](t, get(t, h, api.PathRuns))
	if len(runsResp.Runs) != 1 || runsResp.Runs[0].Folder != videoStatus.Folder || runsResp.Runs[0].Progress.Status != "completed" {
		t.Fatalf("runs: %+v", runsResp)
	}
}

func TestVideoStatusProcessingUntilFinalExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, nil)
	h := d.Handler()

	req := api.LessonRequest{Topic: "Glaciers"}
	status := decode[api.VideoStatus](t, post(t, h, api.PathStatus, req))
	if status.Status != "processing" || status.VideoURL != "" {
		t.Fatalf("status: %+v", status)
	}

	layout := artifacts.New(cfg.Paths.OutputDir, status.Folder)
	testsupport.WriteFile(t, layout.FinalPath(), 32)
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(layout.FinalPath(), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	status = decode[api.VideoStatus](t, post(t, h, api.PathStatus, req))
	if status.Status != "completed" || status.IsRecent {
		t.Fatalf("status: %+v", status)
	}
}

func TestProgressDefaultsAndValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, nil)
	h := d.Handler()

	status := decode[api.ProgressStatus](t, post(t, h, api.PathProgress, api.LessonRequest{Topic: "Unknown"}))
	if status.Progress != 0 || status.Step != 0 || status.Message != "Initializing..." || status.Status != "processing" {
		t.Fatalf("default status: %+v", status)
	}

	cases := []struct {
		name string
		body any
	}{
		{"empty", api.LessonRequest{}},
		{"traversal", api.LessonRequest{Folder: "../etc"}},
		{"nested", api.LessonRequest{Folder: "a/b"}},
	}
	for _, tc := range cases {
		if w := post(t, h, api.PathProgress, tc.body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, api.PathGenerate, strings.NewReader("{not json")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d", w.Code)
	}
	if w := get(t, h, api.PathGenerate); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET generate: %d", w.Code)
	}
	if w := post(t, h, api.PathGenerate, api.LessonRequest{Topic: "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank topic: %d", w.Code)
	}
}

func TestRegenerateRemovesPreviousOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, nil)
	h := d.Handler()

	req := api.LessonRequest{Topic: "Comets"}
	folder := workflow.Request{Topic: req.Topic}.Folder()
	layout := artifacts.New(cfg.Paths.OutputDir, folder)
	testsupport.WriteFile(t, layout.ScriptPath(), 12)
	testsupport.WriteImages(t, layout, 1, 8, 8)

	w := post(t, h, api.PathRegenerate, req)
	if w.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", w.Code, w.Body.String())
	}
	resp := decode[api.GenerateResponse](t, w)
	if len(resp.Removed) != 2 {
		t.Fatalf("removed = %v", resp.Removed)
	}
	waitForState(t, h, req, "completed")
}

func TestConcurrencyLimitPublishesWaitingStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentRuns = 1
	gate := &gateStage{release: make(chan struct{}), entered: make(chan string, 2)}
	d, _ := newDaemon(t, cfg, gate)
	h := d.Handler()

	first := api.LessonRequest{Topic: "Atoms"}
	second := api.LessonRequest{Topic: "Molecules"}
	if w := post(t, h, api.PathGenerate, first); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	<-gate.entered
	if w := post(t, h, api.PathGenerate, second); w.Code != http.StatusOK {
		t.Fatalf("second: %d", w.Code)
	}
	waitForMessage(t, h, second, "Waiting for a free generation slot...")

	close(gate.release)
	waitForState(t, h, first, "completed")
	waitForState(t, h, second, "completed")
}

func TestCancelWhileQueuedRecordsCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentRuns = 1
	gate := &gateStage{release: make(chan struct{}), entered: make(chan string, 2)}
	d, _ := newDaemon(t, cfg, gate)
	h := d.Handler()

	first := api.LessonRequest{Topic: "Atoms"}
	second := api.LessonRequest{Topic: "Molecules"}
	if w := post(t, h, api.PathGenerate, first); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	<-gate.entered
	w := post(t, h, api.PathGenerate, second)
	if w.Code != http.StatusOK {
		t.Fatalf("second: %d", w.Code)
	}
	folder := decode[api.GenerateResponse](t, w).Folder
	waitForMessage(t, h, second, "Waiting for a free generation slot...")

	if w := post(t, h, api.PathCancel, second); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	status := waitForState(t, h, second, "cancelled")
	if status.Message != "Cancelled" || status.Progress != 0 {
		t.Fatalf("cancelled record = %+v", status)
	}

	resp := decode[api.RunsResponse](t, get(t, h, api.PathRuns))
	for _, run := range resp.Runs {
		if run.Folder == folder && (run.Active || run.Progress.Status != "cancelled") {
			t.Fatalf("queued run after cancel: %+v", run)
		}
	}

	close(gate.release)
	waitForState(t, h, first, "completed")
}

func TestShutdownCancelsQueuedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentRuns = 1
	gate := &gateStage{release: make(chan struct{}), entered: make(chan string, 2)}
	d, store := newDaemon(t, cfg, gate)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := d.Handler()

	first := api.LessonRequest{Topic: "Atoms"}
	second := api.LessonRequest{Topic: "Molecules"}
	if w := post(t, h, api.PathGenerate, first); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	<-gate.entered
	w := post(t, h, api.PathGenerate, second)
	if w.Code != http.StatusOK {
		t.Fatalf("second: %d", w.Code)
	}
	folder := decode[api.GenerateResponse](t, w).Folder
	waitForMessage(t, h, second, "Waiting for a free generation slot...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Stop(ctx)

	status, ok, err := store.Get(context.Background(), folder)
	if err != nil || !ok {
		t.Fatalf("Get %s: ok=%v err=%v", folder, ok, err)
	}
	if status.State != progress.StateCancelled {
		t.Fatalf("queued run left as %+v", status)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "tok"
	d, _ := newDaemon(t, cfg, nil)
	h := d.Handler()

	if w := get(t, h, api.PathRuns); w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, api.PathRuns, nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodGet, api.PathRuns, nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: %d", w.Code)
	}
}

func TestStatusEndpointReportsStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FFmpeg.Binary = "/nonexistent/ffmpeg"
	d, _ := newDaemon(t, cfg, nil)

	status := decode[api.DaemonStatus](t, get(t, d.Handler(), api.PathDaemon))
	if len(status.Workflow.StageHealth) != 6 || status.Workflow.StageHealth[0].Name != "prompts" {
		t.Fatalf("stage health: %+v", status.Workflow.StageHealth)
	}
	if status.ProgressBackend != "memory" || status.PID == 0 {
		t.Fatalf("status: %+v", status)
	}
	var ffmpeg *api.DependencyStatus
	for i := range status.Dependencies {
		if status.Dependencies[i].Name == "FFmpeg" {
			ffmpeg = &status.Dependencies[i]
		}
	}
	if ffmpeg == nil || ffmpeg.Available {
		t.Fatalf("ffmpeg dependency: %+v", ffmpeg)
	}
}

func TestServeListenerStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, nil)

	srv := httptest.NewUnstartedServer(nil)
	listener := srv.Listener
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.ServeListener(ctx, listener) }()

	client := api.NewClient(listener.Addr().String(), "")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := client.Runs(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not come up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ServeListener: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ServeListener did not return")
	}
}
