// Package compose builds the unified zoom-0 coordinate dictionary and
// composes 400x400 output tiles from 100x100 source images (C6,
// SPEC_FULL.md §4.6). It backs both the tenant-source path and the
// HMap path, and the zoom-0 leg of the per-tenant large-tile cache.
package compose

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/haven-hearth/publicmap/internal/coordmath"
	"github.com/haven-hearth/publicmap/internal/imaging"
)

// Cell is a zoom-0 unified coordinate.
type Cell struct{ X, Y int }

// Entry is one candidate contribution to a unified cell: a decoded
// 100x100 source image plus a tie-break score.
type Entry struct {
	Image image.Image
	// Score ranks competing entries for the same Cell: cacheTimestamp
	// for the tenant-source path, priority for the HMap path. Higher
	// wins.
	Score int64
	// SourceOrder breaks exact Score ties deterministically — lower
	// SourceOrder (earlier in the aligned source list) wins.
	SourceOrder int
}

// BuildDict keeps, for each Cell, the Entry with the greatest Score,
// ties broken by the lowest SourceOrder.
func BuildDict(entries []Entry, cells []Cell) map[Cell]Entry {
	dict := make(map[Cell]Entry, len(entries))
	for i, e := range entries {
		c := cells[i]
		existing, ok := dict[c]
		if !ok || betterEntry(e, existing) {
			dict[c] = e
		}
	}
	return dict
}

func betterEntry(candidate, existing Entry) bool {
	if candidate.Score != existing.Score {
		return candidate.Score > existing.Score
	}
	return candidate.SourceOrder < existing.SourceOrder
}

// Bounds returns the inclusive zoom-0 min/max coordinates spanned by
// dict's keys. Empty is true when dict has no entries.
func Bounds(dict map[Cell]Entry) coordmath.Bounds {
	var b coordmath.Bounds
	b.Empty = true
	for c := range dict {
		b.Extend(c.X, c.Y)
	}
	return b
}

// Tile composes one 400x400 output tile at output coordinate (tx,ty)
// by drawing the 16 source cells it covers. It returns (nil, false)
// when no cell contributed, per §4.6 — the caller must not write such
// a tile.
func Tile(dict map[Cell]Entry, tx, ty int) (*image.RGBA, bool) {
	canvas := imaging.GetRGBA(400, 400)
	contributed := false

	for dy := 0; dy < 4; dy++ {
		for dx := 0; dx < 4; dx++ {
			cell := Cell{X: 4*tx + dx, Y: 4*ty + dy}
			entry, ok := dict[cell]
			if !ok || entry.Image == nil {
				continue
			}
			imaging.DrawAt(canvas, entry.Image, 100*dx, 100*dy)
			contributed = true
		}
	}

	if !contributed {
		imaging.PutRGBA(canvas)
		return nil, false
	}
	return canvas, true
}

// EncodeQuality is the lossy WebP quality used for every tile the
// engine writes (§4.6, §4.7).
const EncodeQuality = 85

// WritePath returns the on-disk path for an output tile at the given
// zoom level.
func WritePath(outputDir string, zoom, tx, ty int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%d", zoom), fmt.Sprintf("%d_%d.webp", tx, ty))
}

// WriteTile encodes img as WebP and writes it to its canonical path
// under outputDir, creating the zoom-level directory if needed.
func WriteTile(outputDir string, zoom, tx, ty int, img image.Image) error {
	path := WritePath(outputDir, zoom, tx, ty)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("compose: creating output dir: %w", err)
	}
	data, err := imaging.EncodeWebP(img, EncodeQuality)
	if err != nil {
		return fmt.Errorf("compose: encoding tile (%d,%d,%d): %w", zoom, tx, ty, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("compose: writing tile (%d,%d,%d): %w", zoom, tx, ty, err)
	}
	return nil
}
