// Package imaging holds shared raster helpers used by compose, pyramid,
// and tenantcache: size-specific *image.RGBA pools and resize wrappers
// over golang.org/x/image/draw.
package imaging

import (
	"image"
	"sync"
)

// This engine only ever allocates two canvas shapes on its hot path:
// the 400x400 composed/pyramid output tile, and the 200x200 quadrant a
// pyramid level resizes a child tile into before compositing four of
// them into a parent. Each gets its own dedicated pool rather than a
// size-keyed map, since there is no third shape to key on.
const (
	canvasSize   = 400
	quadrantSize = 200
)

var (
	canvasPool   sync.Pool
	quadrantPool sync.Pool
)

func poolFor(w, h int) *sync.Pool {
	switch {
	case w == canvasSize && h == canvasSize:
		return &canvasPool
	case w == quadrantSize && h == quadrantSize:
		return &quadrantPool
	default:
		return nil
	}
}

// GetRGBA returns a zeroed *image.RGBA sized (0,0)-(w,h). For the two
// canvas shapes this engine produces it is drawn from the matching
// pool; any other size is allocated fresh (and not pooled on return).
func GetRGBA(w, h int) *image.RGBA {
	pool := poolFor(w, h)
	if pool != nil {
		if v := pool.Get(); v != nil {
			img := v.(*image.RGBA)
			clear(img.Pix)
			return img
		}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// PutRGBA returns img to its matching pool for reuse, or drops it for
// the garbage collector if its size isn't one of the pooled shapes.
// Nil is ignored.
func PutRGBA(img *image.RGBA) {
	if img == nil {
		return
	}
	if pool := poolFor(img.Rect.Dx(), img.Rect.Dy()); pool != nil {
		pool.Put(img)
	}
}
