// Package pyramid builds zoom levels 1..6 bottom-up from the written
// zoom-0 tile set, each level a 2x2 downsample of the previous one
// (C7, SPEC_FULL.md §4.7).
package pyramid

import (
	"fmt"
	"image"
	"os"

	"github.com/haven-hearth/publicmap/internal/coordmath"
	"github.com/haven-hearth/publicmap/internal/imaging"
)

// MaxZoom is the highest zoom level the pyramid builds.
const MaxZoom = 6

// Cell is a tile coordinate at some implicit zoom level.
type Cell struct{ X, Y int }

// ProgressFunc reports fractional progress in [0,1] for the pyramid
// stage; the caller maps this onto its own 50..100 (or on-the-fly)
// progress range.
type ProgressFunc func(frac float64)

// Build constructs zoom levels 1..MaxZoom under outputDir, given the
// set of zoom-0 coordinates that were actually written by the
// composer. It loads/decodes tiles itself (load), writes each newly
// produced tile via write, and stops early once a level produces zero
// tiles, per §4.7.
func Build(children []Cell, load func(zoom, x, y int) (image.Image, error), write func(zoom, x, y int, img image.Image) error, progress ProgressFunc) error {
	level := children
	for z := 1; z <= MaxZoom; z++ {
		parents := parentSet(level)
		if len(parents) == 0 {
			return nil
		}

		written := make([]Cell, 0, len(parents))
		for _, p := range parents {
			canvas := imaging.GetRGBA(400, 400)
			contributed := false
			for dqy := 0; dqy < 2; dqy++ {
				for dqx := 0; dqx < 2; dqx++ {
					cx, cy := 2*p.X+dqx, 2*p.Y+dqy
					child, err := load(z-1, cx, cy)
					if err != nil {
						continue // absent child: transparent quadrant, not fatal
					}
					resized := imaging.Resize(child, 200, 200, imaging.Nearest)
					imaging.DrawAt(canvas, resized, 200*dqx, 200*dqy)
					imaging.PutRGBA(resized)
					contributed = true
				}
			}
			if !contributed {
				imaging.PutRGBA(canvas)
				continue
			}
			if err := write(z, p.X, p.Y, canvas); err != nil {
				imaging.PutRGBA(canvas)
				return fmt.Errorf("pyramid: writing zoom %d tile (%d,%d): %w", z, p.X, p.Y, err)
			}
			imaging.PutRGBA(canvas)
			written = append(written, p)
		}

		if progress != nil {
			progress(float64(z) / float64(MaxZoom))
		}
		level = written
	}
	return nil
}

func parentSet(children []Cell) []Cell {
	seen := make(map[Cell]struct{}, len(children))
	var out []Cell
	for _, c := range children {
		px, py := coordmath.ParentTile(c.X, c.Y)
		p := Cell{X: px, Y: py}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// LoadDisk loads and decodes a WebP tile from its canonical path,
// suitable as the load callback for Build when running against a
// filesystem-backed tile tree (the batch public-map path).
func LoadDisk(pathFor func(zoom, x, y int) string) func(zoom, x, y int) (image.Image, error) {
	return func(zoom, x, y int) (image.Image, error) {
		data, err := os.ReadFile(pathFor(zoom, x, y))
		if err != nil {
			return nil, err
		}
		return imaging.DecodeWebP(data)
	}
}
