// Package assembly renders the silent lesson video.
//
// The voiceover length decides the timeline: it is probed with ffprobe,
// then read from the WAV header, then estimated from the word count. Each
// image holds the screen for an equal share of that length (at least one
// second) while the caption active at the frame's timestamp is drawn over a
// translucent band. Frames stream to an Encoder as raw RGBA.
package assembly
