package workflow

import (
	"log/slog"
	"net/http"

	"siksha/internal/assembly"
	"siksha/internal/config"
	"siksha/internal/imagegen"
	"siksha/internal/logging"
	"siksha/internal/muxing"
	"siksha/internal/narration"
	"siksha/internal/prompts"
	"siksha/internal/speech"
	"siksha/internal/stage"
	"siksha/internal/textgen"
)

// StageSet bundles the concrete handlers the orchestrator runs, in order.
type StageSet struct {
	Prompts stage.Handler
	Images  stage.Handler
	Script  stage.Handler
	Audio   stage.Handler
	Video   stage.Handler
	Mux     stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	step    int
	percent int
	message string
	done    State
}

// DefaultStages builds the production handlers from configuration. client
// is shared by the HTTP image generators and may be nil.
func DefaultStages(cfg *config.Config, client *http.Client, logger *slog.Logger) StageSet {
	gens := textgen.FromConfig(cfg)
	return StageSet{
		Prompts: prompts.NewStage(gens, cfg.Video.SceneCount, logger),
		Images:  imagegen.NewStage(cfg, client, logger),
		Script:  narration.NewStage(gens, logger),
		Audio:   speech.NewStage(cfg, logger),
		Video:   assembly.NewStage(cfg, nil, logger),
		Mux:     muxing.NewStage(cfg, logger),
	}
}

func (s StageSet) pipeline() []pipelineStage {
	return []pipelineStage{
		{name: prompts.StageName, handler: s.Prompts, step: 0, percent: 5, message: "Generating educational image prompts...", done: StatePromptsReady},
		{name: imagegen.StageName, handler: s.Images, step: 1, percent: 10, message: "Starting AI image generation...", done: StateImagesReady},
		{name: narration.StageName, handler: s.Script, step: 2, percent: 65, message: "Analyzing images and creating narration script...", done: StateScriptReady},
		{name: speech.StageName, handler: s.Audio, step: 3, percent: 75, message: "Creating professional voiceover...", done: StateAudioReady},
		{name: assembly.StageName, handler: s.Video, step: 4, percent: 85, message: "Building video with transitions and captions...", done: StateVideoAssembled},
		{name: muxing.StageName, handler: s.Mux, step: 5, percent: 95, message: "Adding audio and finalizing video...", done: StateMuxed},
	}
}

// ConfigureStages registers handlers. Stage loggers are bound here once,
// not per run, so concurrent runs never race on SetLogger; run fields reach
// the logs through the context.
func (o *Orchestrator) ConfigureStages(set StageSet) {
	stages := set.pipeline()
	for _, stg := range stages {
		if aware, ok := stg.handler.(stage.LoggerAware); ok {
			aware.SetLogger(logging.ForStage(o.logger, o.cfg, stg.name))
		}
	}
	o.mu.Lock()
	o.stages = stages
	o.mu.Unlock()
}

func (o *Orchestrator) pipelineStages() []pipelineStage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]pipelineStage(nil), o.stages...)
}
