package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var nonSlugChar = regexp.MustCompile(`[^a-z0-9-]`)
var dashRun = regexp.MustCompile(`-+`)

const (
	minSlugLen = 3
	maxSlugLen = 50
)

// Slug normalises s into the catalog's slug alphabet: lowercase,
// `[a-z0-9-]` only, no run of dashes, no leading/trailing dash, length
// in [3, 50]. Slug is idempotent: Slug(Slug(s)) == Slug(s).
func Slug(s string) string {
	out := strings.ToLower(s)
	out = nonSlugChar.ReplaceAllString(out, "-")
	out = dashRun.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")

	if out == "" {
		return "public-map"
	}
	if len(out) < minSlugLen {
		out = "map-" + out
	}
	if len(out) > maxSlugLen {
		out = out[:maxSlugLen]
		out = strings.TrimRight(out, "-")
	}
	return out
}

// UniqueSlug appends -1, -2, ... to base until exists returns false.
func UniqueSlug(base string, exists func(candidate string) bool) string {
	if !exists(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := suffixed(base, i)
		if !exists(candidate) {
			return candidate
		}
	}
}

func suffixed(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > maxSlugLen {
		base = base[:maxSlugLen-len(suffix)]
		base = strings.TrimRight(base, "-")
	}
	return base + suffix
}
