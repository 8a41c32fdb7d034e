package tagging

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTagLength bounds a single tag in runes.
const MaxTagLength = 64

// NormalizeTag lowercases and trims a free-form tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// IsValidTag reports whether a tag can be stored and matched: non-empty after
// normalization, at most MaxTagLength runes, and free of commas (the list
// separator on the wire) and control characters.
func IsValidTag(tag string) bool {
	tag = NormalizeTag(tag)
	if tag == "" || utf8.RuneCountInString(tag) > MaxTagLength {
		return false
	}
	for _, r := range tag {
		if r == ',' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// NormalizeTagList returns the distinct valid normalized tags in sorted
// order, or nil when nothing survives.
func NormalizeTagList(tags []string) []string {
	return normalizeList(tags, NormalizeTag, IsValidTag)
}

// NormalizeIDList trims identifiers without changing their case, drops empty
// and duplicate entries, and sorts the result. Category and venue identifiers
// go through here so that two filter values listing the same ids in a
// different order compare equal.
func NormalizeIDList(ids []string) []string {
	return normalizeList(ids, strings.TrimSpace, func(id string) bool { return id != "" })
}

// SplitList splits a comma-joined query value.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func normalizeList(in []string, norm func(string) string, valid func(string) bool) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		v := norm(raw)
		if !valid(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two normalized lists hold the same values.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
