package api

import "time"

// LessonRequest identifies a lesson either by its inputs or by folder.
type LessonRequest struct {
	Topic     string   `json:"topic,omitempty"`
	Audience  string   `json:"audience,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Folder    string   `json:"folder,omitempty"`
}

// GenerateResponse acknowledges a started (or already running) lesson.
type GenerateResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Folder    string   `json:"folder"`
	RequestID string   `json:"request_id,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// ProgressStatus is the record a client polls while a lesson renders.
type ProgressStatus struct {
	Progress  int        `json:"progress"`
	Step      int        `json:"step"`
	Message   string     `json:"message"`
	Substep   string     `json:"substep,omitempty"`
	Status    string     `json:"status"`
	VideoURL  string     `json:"video_url,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// VideoStatus reports whether the final video exists.
type VideoStatus struct {
	Status   string `json:"status"`
	Folder   string `json:"folder"`
	VideoURL string `json:"video_url,omitempty"`
	IsRecent bool   `json:"is_recent"`
}

// CancelResponse confirms a cancellation request.
type CancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Folder    string `json:"folder"`
}

// RunInfo joins an in-flight run with its latest progress record.
type RunInfo struct {
	Folder    string         `json:"folder"`
	RequestID string         `json:"request_id,omitempty"`
	Active    bool           `json:"active"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Progress  ProgressStatus `json:"progress"`
}

// RunsResponse lists active runs followed by finished records.
type RunsResponse struct {
	Runs []RunInfo `json:"runs"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name      string   `json:"name"`
	Ready     bool     `json:"ready"`
	Degraded  bool     `json:"degraded,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// WorkflowStatus summarizes orchestrator state.
type WorkflowStatus struct {
	LastError   string        `json:"last_error,omitempty"`
	LastFolder  string        `json:"last_folder,omitempty"`
	Finished    int           `json:"finished"`
	Failed      int           `json:"failed"`
	StageHealth []StageHealth `json:"stage_health"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	LockFilePath    string             `json:"lock_file_path"`
	OutputDir       string             `json:"output_dir"`
	ProgressBackend string             `json:"progress_backend"`
	ActiveRuns      int                `json:"active_runs"`
	Workflow        WorkflowStatus     `json:"workflow"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
	Folder    string `json:"folder,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
