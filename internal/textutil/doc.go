// Package textutil provides small text helpers shared by the pipeline stages:
// filename sanitization for lesson folders, word counting and truncation for
// placeholders and narration, title casing, and greedy line wrapping for
// caption overlays.
package textutil
