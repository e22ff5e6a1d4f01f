// Package ffprobe wraps the ffprobe CLI for the few facts the pipeline needs:
// audio duration for caption timing and stream layout of encoded output.
package ffprobe
