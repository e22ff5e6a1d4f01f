package api

import (
	"slices"
	"time"

	"siksha/internal/deps"
	"siksha/internal/progress"
	"siksha/internal/runs"
	"siksha/internal/stage"
	"siksha/internal/workflow"
)

// pipelineOrder is the order stage health is reported in; unknown stages
// sort after these by name.
var pipelineOrder = []string{"prompts", "images", "script", "audio", "video", "mux"}

// FromProgress converts a progress record to its API representation.
func FromProgress(status progress.Status) ProgressStatus {
	dto := ProgressStatus{
		Progress:  status.Progress,
		Step:      status.Step,
		Message:   status.Message,
		Substep:   status.Substep,
		Status:    string(status.State),
		VideoURL:  status.VideoURL,
		ErrorKind: status.ErrorKind,
		RequestID: status.RequestID,
	}
	if !status.UpdatedAt.IsZero() {
		ts := status.UpdatedAt.UTC()
		dto.UpdatedAt = &ts
	}
	return dto
}

// FromStatusSummary converts orchestrator diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		LastError:   summary.LastError,
		LastFolder:  summary.LastKey,
		Finished:    summary.Finished,
		Failed:      summary.Failed,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
}

// StageHealthSlice orders a stage health map by pipeline position.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for name, h := range health {
		out = append(out, StageHealth{
			Name:      name,
			Ready:     h.Ready,
			Degraded:  h.Degraded,
			Detail:    h.Detail,
			Providers: h.Providers,
		})
	}
	slices.SortFunc(out, func(a, b StageHealth) int {
		ia, ib := stageRank(a.Name), stageRank(b.Name)
		if ia != ib {
			return ia - ib
		}
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func stageRank(name string) int {
	if i := slices.Index(pipelineOrder, name); i >= 0 {
		return i
	}
	return len(pipelineOrder)
}

// FromDependencies converts a dependency report.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		}
	}
	return out
}

// MergeRuns lists the active handles first, oldest first, each joined with
// its stored status, followed by stored records that have no active run.
func MergeRuns(active []runs.Handle, stored []progress.Entry) []RunInfo {
	byKey := make(map[string]progress.Status, len(stored))
	for _, entry := range stored {
		byKey[entry.Key] = entry.Status
	}
	out := make([]RunInfo, 0, len(stored)+len(active))
	seen := make(map[string]struct{}, len(active))
	for _, handle := range active {
		status, ok := byKey[handle.Key]
		if !ok {
			status = progress.DefaultStatus()
		}
		started := handle.StartedAt.UTC()
		out = append(out, RunInfo{
			Folder:    handle.Key,
			RequestID: handle.RequestID,
			Active:    true,
			StartedAt: timePtr(started),
			Progress:  FromProgress(status),
		})
		seen[handle.Key] = struct{}{}
	}
	for _, entry := range stored {
		if _, ok := seen[entry.Key]; ok {
			continue
		}
		out = append(out, RunInfo{
			Folder:    entry.Key,
			RequestID: entry.Status.RequestID,
			Progress:  FromProgress(entry.Status),
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
