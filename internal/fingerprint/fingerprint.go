// Package fingerprint derives the stable folder identity of a lesson request.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"siksha/internal/textutil"
)

// Length is the number of hex characters kept from the digest.
const Length = 8

// Interests returns the order- and case-insensitive fingerprint of a tag set:
// each tag is trimmed and lowercased, the list is sorted and joined with
// commas, and the first eight hex digits of its MD5 digest are kept.
// Tags that are empty after trimming still take part in the join.
func Interests(tags []string) string {
	normalized := make([]string, len(tags))
	for i, tag := range tags {
		normalized[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	sort.Strings(normalized)
	sum := md5.Sum([]byte(strings.Join(normalized, ",")))
	return hex.EncodeToString(sum[:])[:Length]
}

// Slug converts a topic into the folder-name prefix: spaces become
// underscores and path separators or other filesystem-unsafe characters are
// replaced, so the folder always stays inside the output root.
func Slug(topic string) string {
	slug := strings.ReplaceAll(textutil.SanitizeFileName(topic), " ", "_")
	if slug == "" {
		return "lesson"
	}
	return slug
}

// FolderName returns "{slug}__{fingerprint}" for a topic and tag set.
func FolderName(topic string, tags []string) string {
	return Slug(topic) + "__" + Interests(tags)
}
