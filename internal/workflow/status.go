package workflow

import (
	"context"

	"siksha/internal/stage"
)

// StatusSummary represents lightweight orchestrator diagnostics.
type StatusSummary struct {
	LastError   string                  `json:"last_error,omitempty"`
	LastKey     string                  `json:"last_folder,omitempty"`
	Finished    int                     `json:"finished"`
	Failed      int                     `json:"failed"`
	StageHealth map[string]stage.Health `json:"stage_health"`
}

// Status returns the latest orchestrator information and the health of
// every configured stage.
func (o *Orchestrator) Status(ctx context.Context) StatusSummary {
	o.mu.RLock()
	summary := StatusSummary{LastKey: o.lastKey, Finished: o.finished, Failed: o.failed}
	if o.lastErr != nil {
		summary.LastError = o.lastErr.Error()
	}
	stages := append([]pipelineStage(nil), o.stages...)
	o.mu.RUnlock()

	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			summary.StageHealth[stg.name] = stage.Unhealthy(stg.name, "handler not configured")
			continue
		}
		summary.StageHealth[stg.name] = stg.handler.HealthCheck(ctx)
	}
	return summary
}

func (o *Orchestrator) record(key string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastKey = key
	if err != nil {
		o.lastErr = err
		o.failed++
		return
	}
	o.finished++
}
