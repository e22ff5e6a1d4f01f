// Package speech turns the narration script into output.wav.
//
// Providers run in order: one edge-tts attempt per configured voice,
// espeak-ng, then Silent. Every provider writes to a scratch file beside
// the target and renames it into place only after a non-empty write.
package speech
