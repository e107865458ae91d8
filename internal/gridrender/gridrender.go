// Package gridrender turns one decoded HMap grid into a 100x100 RGBA
// tile image via texture sampling, cliff shading, and tile-priority
// borders (C4, SPEC_FULL.md §4.4).
package gridrender

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/haven-hearth/publicmap/internal/hmap"
	"github.com/haven-hearth/publicmap/internal/texture"
)

const (
	gridSize = 100

	cliffThreshold = 11.0
	cliffBlend     = 0.6
)

var neutralGrey = color.RGBA{R: 128, G: 128, B: 128, A: 255}
var opaqueBlack = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// Render rasterises grid into a 100x100 RGBA image using the given
// texture cache to resolve grid.Tilesets entries.
func Render(ctx context.Context, grid hmap.Grid, textures *texture.Cache) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))

	baseSample(ctx, grid, textures, out)
	shadeCliffs(grid, out)
	drawPriorityBorders(grid, out)

	return out
}

func baseSample(ctx context.Context, grid hmap.Grid, textures *texture.Cache, out *image.RGBA) {
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			ts := grid.TileIndices[y*gridSize+x]
			px := sampleTexture(ctx, grid, int(ts), x, y, textures)
			out.SetRGBA(x, y, px)
		}
	}
}

func sampleTexture(ctx context.Context, grid hmap.Grid, ts, x, y int, textures *texture.Cache) color.RGBA {
	if ts < 0 || ts >= len(grid.Tilesets) {
		return neutralGrey
	}
	name := grid.Tilesets[ts].ResourceName
	if name == "" || textures == nil {
		return neutralGrey
	}
	tex, ok := textures.Get(ctx, name)
	if !ok {
		return neutralGrey
	}
	b := tex.Bounds()
	texW, texH := b.Dx(), b.Dy()
	if texW == 0 || texH == 0 {
		return neutralGrey
	}
	sx := b.Min.X + posMod(x, texW)
	sy := b.Min.Y + posMod(y, texH)
	return tex.RGBAAt(sx, sy)
}

// posMod returns a non-negative remainder regardless of the sign of a.
func posMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func shadeCliffs(grid hmap.Grid, out *image.RGBA) {
	for y := 1; y < gridSize-1; y++ {
		for x := 1; x < gridSize-1; x++ {
			z := grid.ZMap[y*gridSize+x]
			if !isCliff(grid, x, y, z) {
				continue
			}
			px := out.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(px.R) * (1 - cliffBlend)),
				G: uint8(float64(px.G) * (1 - cliffBlend)),
				B: uint8(float64(px.B) * (1 - cliffBlend)),
				A: px.A,
			})
		}
	}
}

func isCliff(grid hmap.Grid, x, y int, z float32) bool {
	for _, n := range neighbours4(x, y) {
		zn := grid.ZMap[n.y*gridSize+n.x]
		if math.Abs(float64(z-zn)) > cliffThreshold {
			return true
		}
	}
	return false
}

func drawPriorityBorders(grid hmap.Grid, out *image.RGBA) {
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			ts := grid.TileIndices[y*gridSize+x]
			for _, n := range neighbours4(x, y) {
				if n.x < 0 || n.x >= gridSize || n.y < 0 || n.y >= gridSize {
					continue
				}
				if grid.TileIndices[n.y*gridSize+n.x] > ts {
					out.SetRGBA(x, y, opaqueBlack)
					break
				}
			}
		}
	}
}

type point struct{ x, y int }

func neighbours4(x, y int) [4]point {
	return [4]point{
		{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1},
	}
}
