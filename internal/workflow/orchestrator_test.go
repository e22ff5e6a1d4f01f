package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"siksha/internal/artifacts"
	"siksha/internal/notifications"
	"siksha/internal/progress"
	"siksha/internal/services"
	"siksha/internal/stage"
	"siksha/internal/testsupport"
)

func TestRunCompletesAndPublishesEveryStep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := &callLog{}
	set, _ := fakeStages(calls)
	o, store, notifier := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Photosynthesis", Audience: "high school", Interests: []string{"plants"}}
	outcome, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateMuxed {
		t.Fatalf("state = %s, want %s", outcome.State, StateMuxed)
	}
	if outcome.RequestID == "" {
		t.Fatal("expected a request id")
	}

	wantCalls := []string{"prompts", "images", "script", "audio", "video", "mux"}
	if got := calls.list(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("calls = %v, want %v", got, wantCalls)
	}

	history := store.snapshot()
	assertMonotonic(t, history)
	var percents []int
	for _, status := range history {
		percents = append(percents, status.Progress)
	}
	wantPercents := []int{0, 5, 10, 65, 75, 85, 95, 100}
	if !reflect.DeepEqual(percents, wantPercents) {
		t.Fatalf("percents = %v, want %v", percents, wantPercents)
	}

	final := finalStatus(t, store, req.Folder())
	wantURL := "/static/generated_videos/" + req.Folder() + "/final_output_video.mp4"
	if final.State != progress.StateCompleted || final.Step != 6 || final.VideoURL != wantURL {
		t.Fatalf("unexpected final status: %+v", final)
	}
	if final.Message != "Video generation completed!" {
		t.Fatalf("message = %q", final.Message)
	}
	if final.RequestID != outcome.RequestID {
		t.Fatalf("request id mismatch: %q vs %q", final.RequestID, outcome.RequestID)
	}
	if events := notifier.recorded(); len(events) != 1 || events[0] != notifications.EventLessonCompleted {
		t.Fatalf("events = %v", events)
	}
}

func TestRunUsesRequestIDFromContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, _ := fakeStages(&callLog{})
	o, store, _ := newTestOrchestrator(t, cfg, set)

	ctx := services.WithRequestID(context.Background(), "req-42")
	req := Request{Topic: "Volcanoes"}
	outcome, err := o.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.RequestID != "req-42" {
		t.Fatalf("request id = %q", outcome.RequestID)
	}
	if status := finalStatus(t, store, req.Folder()); status.RequestID != "req-42" {
		t.Fatalf("stored request id = %q", status.RequestID)
	}
}

func TestRunFailureKeepsLastProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := &callLog{}
	set, stages := fakeStages(calls)
	stages["script"].executeErr = services.Wrap(services.ErrExternalTool, "script", "generate", "all generators failed", errBoom)
	o, store, notifier := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Gravity"}
	outcome, err := o.Run(context.Background(), req)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want external tool", err)
	}
	if outcome.State != StateFailed {
		t.Fatalf("state = %s", outcome.State)
	}
	if got := calls.list(); !reflect.DeepEqual(got, []string{"prompts", "images", "script"}) {
		t.Fatalf("calls = %v", got)
	}

	status := finalStatus(t, store, req.Folder())
	if status.State != progress.StateError {
		t.Fatalf("state = %s", status.State)
	}
	if status.Progress != 65 || status.Step != 2 {
		t.Fatalf("progress/step = %d/%d, want 65/2", status.Progress, status.Step)
	}
	if !strings.HasPrefix(status.Message, "Error: ") || !strings.Contains(status.Message, "boom") {
		t.Fatalf("message = %q", status.Message)
	}
	if status.ErrorKind != string(services.KindExternalTool) {
		t.Fatalf("error kind = %q", status.ErrorKind)
	}
	assertMonotonic(t, store.snapshot())

	events := notifier.recorded()
	if len(events) != 1 || events[0] != notifications.EventLessonFailed {
		t.Fatalf("events = %v", events)
	}
	if notifier.last["stage"] != "script" {
		t.Fatalf("payload stage = %v", notifier.last["stage"])
	}

	summary := o.Status(context.Background())
	if summary.Failed != 1 || summary.LastKey != req.Folder() || summary.LastError == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunPrepareFailureStopsBeforeExecute(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := &callLog{}
	set, stages := fakeStages(calls)
	stages["audio"].prepareErr = services.Wrap(services.ErrMissingArtifact, "audio", "load script", "script.txt", nil)
	o, store, _ := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Tides"}
	if _, err := o.Run(context.Background(), req); !errors.Is(err, services.ErrMissingArtifact) {
		t.Fatalf("err = %v", err)
	}
	if got := calls.list(); len(got) != 3 {
		t.Fatalf("audio execute should not run, calls = %v", got)
	}
	status := finalStatus(t, store, req.Folder())
	if status.ErrorKind != string(services.KindMissingArtifact) || status.Step != 3 || status.Progress != 75 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRunRequiresNonEmptyFinalVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, stages := fakeStages(&callLog{})
	stages["mux"].execute = func(_ context.Context, job *stage.Job) error {
		return os.WriteFile(job.Layout.FinalPath(), nil, 0o644)
	}
	o, store, _ := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Magnets"}
	if _, err := o.Run(context.Background(), req); !errors.Is(err, services.ErrMissingArtifact) {
		t.Fatalf("err = %v", err)
	}
	status := finalStatus(t, store, req.Folder())
	if status.State != progress.StateError || status.Progress != 95 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRunRecoversPanickingStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, stages := fakeStages(&callLog{})
	stages["video"].execute = func(context.Context, *stage.Job) error {
		panic("frame buffer exploded")
	}
	o, store, _ := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Weather"}
	outcome, err := o.Run(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "frame buffer exploded") {
		t.Fatalf("err = %v", err)
	}
	if outcome.State != StateFailed {
		t.Fatalf("state = %s", outcome.State)
	}
	status := finalStatus(t, store, req.Folder())
	if status.State != progress.StateError || status.Step != 4 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRunCancelledMidStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := &callLog{}
	set, stages := fakeStages(calls)
	started := make(chan struct{})
	stages["images"].execute = func(ctx context.Context, _ *stage.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	o, store, notifier := newTestOrchestrator(t, cfg, set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := Request{Topic: "Rivers"}
	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := o.Run(ctx, req)
		done <- outcome
	}()

	<-started
	cancel()
	var outcome Outcome
	select {
	case outcome = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	if outcome.State != StateCancelled {
		t.Fatalf("state = %s", outcome.State)
	}
	status := finalStatus(t, store, req.Folder())
	if status.State != progress.StateCancelled || status.Progress != 10 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if events := notifier.recorded(); len(events) != 1 || events[0] != notifications.EventLessonCancelled {
		t.Fatalf("events = %v", events)
	}
	if got := calls.list(); len(got) != 2 {
		t.Fatalf("calls = %v", got)
	}
}

func TestRunPreflightRejectsLowDiskSpace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MinFreeMiB = 1024
	calls := &callLog{}
	set, _ := fakeStages(calls)
	store := newRecordingStore()
	var checked string
	o := NewOrchestrator(cfg, store, nil,
		WithNotifier(&notifierRecorder{}),
		WithStages(set),
		WithSpaceCheck(func(path string, minMiB uint64) error {
			checked = path
			return services.Wrap(services.ErrResourceExhausted, "preflight", "free space", "12 MiB free", nil)
		}),
	)

	req := Request{Topic: "Stars"}
	if _, err := o.Run(context.Background(), req); !errors.Is(err, services.ErrResourceExhausted) {
		t.Fatalf("err = %v", err)
	}
	if checked != cfg.Paths.OutputDir {
		t.Fatalf("space checked on %q", checked)
	}
	if len(calls.list()) != 0 {
		t.Fatalf("stages ran: %v", calls.list())
	}
	status := finalStatus(t, store, req.Folder())
	if status.ErrorKind != string(services.KindResourceExhausted) || status.Progress != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStageReportsCarryStepAndStayMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, stages := fakeStages(&callLog{})
	stages["images"].execute = func(ctx context.Context, job *stage.Job) error {
		job.Report(ctx, 20, "Generating educational images...", "Image 1/2")
		job.Report(ctx, 8, "stale", "")
		job.Report(ctx, 40, "Generating educational images...", "Image 2/2")
		return nil
	}
	o, store, _ := newTestOrchestrator(t, cfg, set)

	if _, err := o.Run(context.Background(), Request{Topic: "Cells"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	history := store.snapshot()
	assertMonotonic(t, history)
	var substeps []string
	for _, status := range history {
		if status.Message == "stale" {
			t.Fatal("lower percentage was published")
		}
		if status.Substep != "" {
			if status.Step != 1 {
				t.Fatalf("substep %q published with step %d", status.Substep, status.Step)
			}
			substeps = append(substeps, status.Substep)
		}
	}
	if !reflect.DeepEqual(substeps, []string{"Image 1/2", "Image 2/2"}) {
		t.Fatalf("substeps = %v", substeps)
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, _ := fakeStages(&callLog{})
	o, store, _ := newTestOrchestrator(t, cfg, set)

	if _, err := o.Run(context.Background(), Request{Topic: "   "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if entries, _ := store.List(context.Background()); len(entries) != 0 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRunWithoutStagesFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o := NewOrchestrator(cfg, progress.NewMemoryStore(), nil, WithNotifier(&notifierRecorder{}))
	if _, err := o.Run(context.Background(), Request{Topic: "Empty"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestFolderIgnoresInterestOrder(t *testing.T) {
	a := Request{Topic: "Solar System", Interests: []string{"Space", "rockets"}}
	b := Request{Topic: "Solar System", Interests: []string{"rockets ", "space"}}
	if a.Folder() != b.Folder() {
		t.Fatalf("folders differ: %s vs %s", a.Folder(), b.Folder())
	}
	if !strings.HasPrefix(a.Folder(), "Solar_System__") {
		t.Fatalf("folder = %s", a.Folder())
	}
}

func TestResetRemovesGeneratedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	o := NewOrchestrator(cfg, progress.NewMemoryStore(), nil)
	req := Request{Topic: "Erosion"}
	layout := layoutFor(cfg, req)
	testsupport.WriteImages(t, layout, 2, 8, 8)
	testsupport.WriteFile(t, layout.ScriptPath(), 10)
	testsupport.WriteFile(t, layout.FinalPath(), 10)
	keep := filepath.Join(layout.Dir(), "notes.txt")
	testsupport.WriteFile(t, keep, 4)

	removed, err := o.Reset(req)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed = %v", removed)
	}
	if _, err := os.Stat(layout.ImagesPath()); !os.IsNotExist(err) {
		t.Fatalf("images dir still present: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, _ := fakeStages(&callLog{})
	set.Audio = nil
	o, _, _ := newTestOrchestrator(t, cfg, set)

	summary := o.Status(context.Background())
	if len(summary.StageHealth) != 6 {
		t.Fatalf("health entries = %d", len(summary.StageHealth))
	}
	if !summary.StageHealth["images"].Ready {
		t.Fatalf("images health = %+v", summary.StageHealth["images"])
	}
	if summary.StageHealth["audio"].Ready {
		t.Fatal("missing handler reported ready")
	}
}

func TestOutcomeStatesAreTerminal(t *testing.T) {
	for _, state := range []State{StateMuxed, StateFailed, StateCancelled} {
		if !state.Terminal() {
			t.Fatalf("%s should be terminal", state)
		}
	}
	if StateAudioReady.Terminal() {
		t.Fatal("audio_ready is not terminal")
	}
}

func TestFinalURLUsesConfiguredPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.URLPrefix = "/media/lessons"
	set, _ := fakeStages(&callLog{})
	o, _, _ := newTestOrchestrator(t, cfg, set)

	req := Request{Topic: "Clouds"}
	outcome, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "/media/lessons/" + req.Folder() + "/" + artifacts.FinalFile; outcome.VideoURL != want {
		t.Fatalf("url = %q, want %q", outcome.VideoURL, want)
	}
}

func TestProgressLogsAreSampledPerStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := &callLog{}
	set, stages := fakeStages(calls)
	const images = 15
	stages["images"].execute = func(ctx context.Context, job *stage.Job) error {
		for i := 0; i < images; i++ {
			job.Report(ctx, 20+int(float64(i)/images*40), "Generating educational images...", fmt.Sprintf("Image %d/%d", i+1, images))
		}
		return nil
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	o := NewOrchestrator(cfg, newRecordingStore(), logger, WithNotifier(&notifierRecorder{}), WithStages(set))
	if _, err := o.Run(context.Background(), Request{Topic: "Rivers"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var percents []int
	stagesSeen := map[string]bool{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry struct {
			EventType string `json:"event_type"`
			Stage     string `json:"stage"`
			Percent   int    `json:"percent"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry.EventType != "stage_progress" {
			continue
		}
		stagesSeen[entry.Stage] = true
		if entry.Stage == "images" {
			percents = append(percents, entry.Percent)
		}
	}

	// Stage entry at 10%, then one line per 10% bucket: 20, 30, 41, 52.
	want := []int{10, 20, 30, 41, 52}
	if !reflect.DeepEqual(percents, want) {
		t.Fatalf("image progress logged at %v, want %v", percents, want)
	}
	for _, name := range []string{"prompts", "script", "audio", "video", "mux"} {
		if !stagesSeen[name] {
			t.Fatalf("no progress line for stage %s", name)
		}
	}
}
