package workflow

// State is the orchestrator's position in the pipeline.
type State string

const (
	StateInit           State = "init"
	StatePromptsReady   State = "prompts_ready"
	StateImagesReady    State = "images_ready"
	StateScriptReady    State = "script_ready"
	StateAudioReady     State = "audio_ready"
	StateVideoAssembled State = "video_assembled"
	StateMuxed          State = "muxed"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateMuxed, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Step numbers and messages shared with the progress API.
const (
	completionStep    = 6
	completionMessage = "Video generation completed!"
)
