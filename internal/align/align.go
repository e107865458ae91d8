// Package align computes per-source zoom-0 offsets for a tenant's
// public-map sources by finding a shared grid id with a base source
// (C5, SPEC_FULL.md §4.5).
package align

import (
	"log/slog"
	"sort"
)

// Point is a zoom-0 coordinate pair.
type Point struct{ X, Y int }

// Source is one tenant public-map source. Align sorts by Priority
// desc, AddedAt asc itself; callers need not pre-sort.
type Source struct {
	Key      string
	Priority int
	AddedAt  int64 // unix nanos; only relative ordering matters
	Grids    map[string]Point
}

// Offset is the zoom-0 translation applied to a source's own
// coordinates to bring it into the unified coordinate space.
type Offset struct{ DX, DY int }

// Align orders sources by priority desc, addedAt asc, fixes the first
// as the base with offset (0,0), and for every other source finds the
// lexicographically first gridId present in both the source and the
// base, deriving the offset from it. A source sharing no grid with the
// base gets offset (0,0) and is reported via the returned warnings
// slice; this is never fatal.
func Align(sources []Source) (map[string]Offset, []string) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].AddedAt < ordered[j].AddedAt
	})

	offsets := make(map[string]Offset, len(ordered))
	var warnings []string
	if len(ordered) == 0 {
		return offsets, warnings
	}

	base := ordered[0]
	offsets[base.Key] = Offset{0, 0}

	for _, src := range ordered[1:] {
		gridID, ok := firstSharedGridID(base.Grids, src.Grids)
		if !ok {
			offsets[src.Key] = Offset{0, 0}
			warnings = append(warnings, "source "+src.Key+" shares no grid with base "+base.Key+"; offset defaulted to (0,0)")
			slog.Warn("align: no shared grid", "source", src.Key, "base", base.Key)
			continue
		}
		baseXY := base.Grids[gridID]
		srcXY := src.Grids[gridID]
		offsets[src.Key] = Offset{DX: baseXY.X - srcXY.X, DY: baseXY.Y - srcXY.Y}
	}

	return offsets, warnings
}

// firstSharedGridID returns the lexicographically smallest gridId
// present in both base and src, chosen stably regardless of map
// iteration order.
func firstSharedGridID(base, src map[string]Point) (string, bool) {
	var shared []string
	for id := range base {
		if _, ok := src[id]; ok {
			shared = append(shared, id)
		}
	}
	if len(shared) == 0 {
		return "", false
	}
	sort.Strings(shared)
	return shared[0], true
}
