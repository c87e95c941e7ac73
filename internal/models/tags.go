package models

import (
	"strings"
	"unicode/utf16"
)

const (
	MaxTags      = 16
	MaxTagLength = 32 // UTF-16 code units; tags must be strictly shorter
)

// NormalizeTags deduplicates tags in first-seen order, drops empty entries and
// entries of MaxTagLength UTF-16 code units or more, and keeps at most MaxTags.
//
// A nil input yields nil so the field is omitted from the wire body.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, min(len(tags), MaxTags))
	for _, tag := range tags {
		if tag == "" || tagLength(tag) >= MaxTagLength {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// tagLength counts UTF-16 code units, so characters outside the BMP count twice.
func tagLength(tag string) int {
	n := 0
	for _, r := range tag {
		n += utf16.RuneLen(r)
	}
	return n
}

// SplitTags normalizes a comma separated tag string. An empty string yields nil.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}
