package imaging

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resampling selects the interpolation kernel used by Resize.
type Resampling int

const (
	// Nearest preserves hard edges; used for the pyramid's 2x2
	// downsample where source pixels map exactly onto quadrants.
	Nearest Resampling = iota
	// Bilinear smooths the result; suited to source/destination ratios
	// that are not an exact power of two. No caller in this module
	// currently selects it.
	Bilinear
)

// Resize scales src into a new RGBA image of the given dimensions.
func Resize(src image.Image, w, h int, mode Resampling) *image.RGBA {
	dst := GetRGBA(w, h)
	scaler := xdraw.NearestNeighbor
	if mode == Bilinear {
		scaler = xdraw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// DrawAt composites src onto dst with src's top-left corner placed at
// (x, y), clipping to dst's bounds. Used to place 100x100 grid/source
// tiles into a 400x400 composed canvas.
func DrawAt(dst *image.RGBA, src image.Image, x, y int) {
	r := image.Rect(x, y, x+src.Bounds().Dx(), y+src.Bounds().Dy())
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
}
