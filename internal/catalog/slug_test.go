package catalog

import (
	"strings"
	"testing"
)

func TestSlugBasic(t *testing.T) {
	if got := Slug("My Map"); got != "my-map" {
		t.Fatalf("Slug(%q) = %q, want %q", "My Map", got, "my-map")
	}
}

func TestSlugCollapsesRunsAndTrims(t *testing.T) {
	if got := Slug("  Weird!!  Name--- "); got != "weird-name" {
		t.Fatalf("got %q", got)
	}
}

func TestSlugEmptyBecomesPublicMap(t *testing.T) {
	if got := Slug("!!!"); got != "public-map" {
		t.Fatalf("got %q, want public-map", got)
	}
}

func TestSlugShortNamePrefixed(t *testing.T) {
	got := Slug("ab")
	if !strings.HasPrefix(got, "map-") {
		t.Fatalf("got %q, want map- prefix for sub-3-char input", got)
	}
	if len(got) < minSlugLen {
		t.Fatalf("slug %q shorter than minimum", got)
	}
}

func TestSlugTruncatesAndRetrims(t *testing.T) {
	long := strings.Repeat("a", 60) + "---"
	got := Slug(long)
	if len(got) > maxSlugLen {
		t.Fatalf("slug length %d exceeds max %d", len(got), maxSlugLen)
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("slug %q has trailing dash after truncation", got)
	}
}

func TestSlugIdempotent(t *testing.T) {
	inputs := []string{"My Map", "!!!", "ab", strings.Repeat("x-", 40), "already-a-slug"}
	for _, s := range inputs {
		first := Slug(s)
		second := Slug(first)
		if first != second {
			t.Fatalf("Slug not idempotent for %q: Slug(s)=%q, Slug(Slug(s))=%q", s, first, second)
		}
		if len(first) < 3 || len(first) > 50 {
			t.Fatalf("slug %q length out of [3,50]", first)
		}
		if strings.Contains(first, "--") {
			t.Fatalf("slug %q contains a double dash", first)
		}
		if strings.HasPrefix(first, "-") || strings.HasSuffix(first, "-") {
			t.Fatalf("slug %q has leading/trailing dash", first)
		}
	}
}

func TestUniqueSlugSuffixesOnCollision(t *testing.T) {
	taken := map[string]bool{"my-map": true, "my-map-1": true}
	got := UniqueSlug("my-map", func(c string) bool { return taken[c] })
	if got != "my-map-2" {
		t.Fatalf("got %q, want my-map-2", got)
	}
}

func TestUniqueSlugReturnsBaseWhenFree(t *testing.T) {
	got := UniqueSlug("free-slug", func(string) bool { return false })
	if got != "free-slug" {
		t.Fatalf("got %q, want free-slug", got)
	}
}
